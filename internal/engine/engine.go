package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/concurrent"
	"github.com/velatrade/vela/internal/gate"
	"github.com/velatrade/vela/internal/ledger"
	"github.com/velatrade/vela/internal/metrics"
	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/risk"
)

// Engine drives the trading cycle. Market data and decisions are fetched
// concurrently per coin, every state mutation happens on the cycle goroutine.
type Engine struct {
	cfg *config.Config

	market     api.Market
	indicators api.Indicators
	oracle     api.Oracle
	exchange   api.Exchange

	gate      *gate.Gate
	sizer     risk.Sizer
	book      *risk.Book
	ledger    *ledger.Ledger
	publisher audit.Publisher
	clock     api.Clock

	cycle  int64
	orders *concurrent.Counter
}

// Deps bundles the engine collaborators.
type Deps struct {
	Market     api.Market
	Indicators api.Indicators
	Oracle     api.Oracle
	Exchange   api.Exchange
	Book       *risk.Book
	Ledger     *ledger.Ledger
	Publisher  audit.Publisher
	Clock      api.Clock
}

func New(cfg *config.Config, deps Deps) *Engine {
	clock := deps.Clock
	if clock == nil {
		clock = api.ClockFunc(time.Now)
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = audit.Void{}
	}
	return &Engine{
		cfg:        cfg,
		market:     deps.Market,
		indicators: deps.Indicators,
		oracle:     deps.Oracle,
		exchange:   deps.Exchange,
		gate:       gate.New(cfg.Gate),
		sizer:      risk.NewSizer(cfg.Risk),
		book:       deps.Book,
		ledger:     deps.Ledger,
		publisher:  publisher,
		clock:      clock,
		orders:     concurrent.NewCounter(),
	}
}

// Run executes cycles on the configured interval until the context is cancelled.
// The first cycle starts immediately.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Int("coins", len(e.cfg.Coins)).
		Dur("interval", e.cfg.Interval).
		Msg("engine starting")

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.Cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Int64("cycles", e.cycle).Msg("engine stopping")
			e.reconcile()
			return ctx.Err()
		case <-ticker.C:
			e.Cycle(ctx)
		}
	}
}

// Band returns the current risk band.
func (e *Engine) Band() risk.Band {
	return e.book.Band()
}

// Status is the admin view of the engine state.
type Status struct {
	Cycle     int64                   `json:"cycle"`
	Band      string                  `json:"band"`
	Orders    int                     `json:"orders"`
	Portfolio model.Portfolio         `json:"portfolio"`
	Positions []model.Position        `json:"positions"`
	Summary   []model.PositionSummary `json:"summary"`
}

// Status snapshots the engine for the admin server.
func (e *Engine) Status() Status {
	return Status{
		Cycle:     e.cycle,
		Band:      e.book.Band().String(),
		Orders:    e.orders.Get(),
		Portfolio: e.book.Portfolio(),
		Positions: e.ledger.All(),
		Summary:   e.ledger.Summary(),
	}
}

// publish emits an audit event stamped with the current cycle.
func (e *Engine) publish(event audit.Event) {
	event.Cycle = e.cycle
	e.publisher.Publish(event)
}

// observe pushes the portfolio gauges after a cycle.
func (e *Engine) observe() {
	portfolio := e.book.Portfolio()
	metrics.Observer.Portfolio(
		portfolio.Equity,
		portfolio.Drawdown(),
		portfolio.Exposure(),
		e.ledger.Count(),
	)
}
