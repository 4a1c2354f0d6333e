package api

import (
	"context"
	"errors"
	"time"

	"github.com/velatrade/vela/internal/model"
)

var (
	// ErrStale marks market data beyond the freshness bound.
	ErrStale = errors.New("stale market data")
	// ErrUnavailable marks a collaborator that could not be reached in time.
	ErrUnavailable = errors.New("collaborator unavailable")
	// ErrRejected marks an order the gateway refused.
	ErrRejected = errors.New("order rejected")
	// ErrUnknownOrder marks an order id the gateway has no record of.
	ErrUnknownOrder = errors.New("unknown order")
)

// Market supplies read only market snapshots per coin.
type Market interface {
	// Snapshot returns the current snapshot for the coin across the given timeframes.
	Snapshot(ctx context.Context, coin model.Coin, timeframes []string) (*model.Snapshot, error)
	// Constraints returns the tick/lot rounding rules for the coin.
	Constraints(ctx context.Context, coin model.Coin) (model.Constraints, error)
}

// Indicators computes the finished indicator set from a candle series.
type Indicators interface {
	Compute(candles []model.Candle) model.IndicatorSet
}

// Oracle produces the trading decision for one coin.
// Its output is untrusted and must pass schema validation and the gate.
type Oracle interface {
	Decide(ctx context.Context, snapshot model.Snapshot, indicators model.IndicatorSet, summary model.Summary) (model.Decision, error)
}

// Exchange is the order execution gateway.
type Exchange interface {
	// Submit sends the order intent and returns the fill.
	Submit(ctx context.Context, order model.Order) (*model.Fill, error)
	// Check returns the fill for an already submitted order, or
	// ErrUnknownOrder if the gateway never saw it. Submission is never
	// blindly retried without checking first.
	Check(ctx context.Context, orderID string) (*model.Fill, error)
	// Balance returns the current account equity.
	Balance(ctx context.Context) (float64, error)
}

// Clock abstracts time for the engine, tests inject their own.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a func to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
