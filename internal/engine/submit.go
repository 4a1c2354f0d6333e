package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/model"
)

const retryBackoff = 500 * time.Millisecond

// withRetry runs the call with bounded linear backoff.
// A context cancellation or an explicit rejection is never retried.
func (e *Engine) withRetry(ctx context.Context, retries int, call func(ctx context.Context) error) error {
	if retries < 1 {
		retries = 1
	}
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		err = call(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, api.ErrRejected) {
			return err
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoff):
			}
		}
	}
	return err
}

// submit sends the order and confirms the fill. On an ambiguous failure the
// order status is checked before any resubmission, the same intent is never
// blindly sent twice.
func (e *Engine) submit(ctx context.Context, order model.Order) (*model.Fill, error) {
	event := audit.New(audit.TypeOrder, order.Coin, e.clock.Now())
	o := order
	event.Order = &o
	e.publish(event)
	e.orders.Track(order.ID)

	fill, err := e.exchange.Submit(ctx, order)
	if err == nil {
		e.confirm(fill)
		return fill, nil
	}
	if errors.Is(err, api.ErrRejected) {
		e.orders.Resolve(order.ID)
		return nil, err
	}

	// ambiguous failure, the order may or may not have reached the venue
	log.Warn().Err(err).
		Str("coin", string(order.Coin)).
		Str("order", order.ID).
		Msg("order submission unclear, checking status")

	fill, checkErr := e.check(ctx, order.ID)
	if checkErr == nil {
		e.confirm(fill)
		return fill, nil
	}
	if !errors.Is(checkErr, api.ErrUnknownOrder) {
		return nil, fmt.Errorf("order %s in unknown state: %w", order.ID, checkErr)
	}

	// the venue never saw it, safe to send once more
	fill, err = e.exchange.Submit(ctx, order)
	if err != nil {
		if errors.Is(err, api.ErrRejected) {
			e.orders.Resolve(order.ID)
		}
		return nil, fmt.Errorf("order %s failed after resubmit: %w", order.ID, err)
	}
	e.confirm(fill)
	return fill, nil
}

// reconcile settles orders whose submission outcome was never observed,
// typically an ambiguous failure right before shutdown. A fill found at the
// venue is logged loudly, the next start picks the position up from the
// persisted ledger.
func (e *Engine) reconcile() {
	pending := e.orders.Values()
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Market.Timeout)
	defer cancel()

	for _, id := range pending {
		fill, err := e.exchange.Check(ctx, id)
		switch {
		case err == nil:
			log.Warn().
				Str("order", id).
				Float64("volume", fill.Volume).
				Float64("price", fill.Price).
				Msg("unconfirmed order was filled at the venue")
			e.confirm(fill)
		case errors.Is(err, api.ErrUnknownOrder):
			e.orders.Resolve(id)
		default:
			log.Error().Err(err).Str("order", id).Msg("order still unresolved at shutdown")
		}
	}
}

// check polls the order status with bounded retries.
func (e *Engine) check(ctx context.Context, orderID string) (*model.Fill, error) {
	var fill *model.Fill
	err := e.withRetry(ctx, e.cfg.Market.Retries, func(ctx context.Context) error {
		var err error
		fill, err = e.exchange.Check(ctx, orderID)
		return err
	})
	return fill, err
}

func (e *Engine) confirm(fill *model.Fill) {
	e.orders.Resolve(fill.OrderID)
	event := audit.New(audit.TypeFill, fill.Coin, fill.Time)
	f := *fill
	event.Fill = &f
	e.publish(event)
	log.Info().
		Str("coin", string(fill.Coin)).
		Str("order", fill.OrderID).
		Float64("volume", fill.Volume).
		Float64("price", fill.Price).
		Msg("order filled")
}
