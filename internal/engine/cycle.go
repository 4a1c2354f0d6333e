package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/concurrent"
	"github.com/velatrade/vela/internal/gate"
	"github.com/velatrade/vela/internal/ledger"
	"github.com/velatrade/vela/internal/metrics"
	"github.com/velatrade/vela/internal/model"
)

// result is the outcome of the concurrent fetch phase for one coin.
// A fetch or oracle failure degrades the coin to hold for the cycle,
// it never aborts the cycle for the other coins.
type result struct {
	coin        model.Coin
	snapshot    model.Snapshot
	indicators  model.IndicatorSet
	constraints model.Constraints
	decision    model.Decision
	latency     time.Duration
	err         error
}

// Cycle runs one full trading cycle: refresh the portfolio, fetch all coins
// concurrently, then monitor and enter serially in the configured coin order.
func (e *Engine) Cycle(ctx context.Context) {
	e.cycle++
	now := e.clock.Now()
	metrics.Observer.Cycle()

	equity, err := e.balance(ctx)
	if err != nil {
		log.Warn().Err(err).Int64("cycle", e.cycle).Msg("could not read balance, skipping cycle")
		metrics.Observer.Error("", "balance")
		return
	}

	before := e.book.Band()
	band := e.book.MarkEquity(equity, e.ledger.Notional(), now)
	if band != before {
		metrics.Observer.Band(band.String())
		event := audit.New(audit.TypeBand, model.NoCoin, now)
		event.Band = band.String()
		portfolio := e.book.Portfolio()
		event.Portfolio = &portfolio
		event.Reason = fmt.Sprintf("band %s -> %s", before, band)
		e.publish(event)
		log.Warn().
			Str("from", before.String()).
			Str("to", band.String()).
			Float64("equity", equity).
			Msg("risk band transition")
	}

	results := e.fetch(ctx, now)

	for _, r := range results {
		if r.err != nil {
			log.Warn().Err(r.err).Str("coin", string(r.coin)).Msg("degraded to hold")
			continue
		}
		e.monitor(ctx, r, now)
	}
	for _, r := range results {
		if r.err != nil {
			continue
		}
		e.act(ctx, r, equity, now)
	}

	e.observe()
	log.Info().
		Int64("cycle", e.cycle).
		Float64("equity", equity).
		Str("band", band.String()).
		Int("positions", e.ledger.Count()).
		Msg("cycle done")
}

// balance reads the account equity with bounded retries.
func (e *Engine) balance(ctx context.Context) (float64, error) {
	var equity float64
	err := e.withRetry(ctx, e.cfg.Market.Retries, func(ctx context.Context) error {
		var err error
		equity, err = e.exchange.Balance(ctx)
		return err
	})
	return equity, err
}

// fetch gathers snapshot, indicators and decision for every coin concurrently.
// Results come back in the configured coin order.
func (e *Engine) fetch(ctx context.Context, now time.Time) []result {
	results := make([]result, len(e.cfg.Coins))
	summary := e.summary()

	concurrent.ForEach(ctx, indexes(len(e.cfg.Coins)), len(e.cfg.Coins), func(ctx context.Context, i int) {
		results[i] = e.fetchOne(ctx, e.cfg.Coins[i], summary, now)
	})
	return results
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (e *Engine) fetchOne(ctx context.Context, coin model.Coin, summary model.Summary, now time.Time) result {
	r := result{coin: coin}

	err := e.withRetry(ctx, e.cfg.Market.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.cfg.Market.Timeout)
		defer cancel()
		snapshot, err := e.market.Snapshot(ctx, coin, e.cfg.Timeframes)
		if err != nil {
			return err
		}
		r.snapshot = *snapshot
		return nil
	})
	if err != nil {
		metrics.Observer.Error(string(coin), "market")
		r.err = fmt.Errorf("market data: %w", err)
		return r
	}
	if r.snapshot.Stale(e.cfg.Gate.MaxDataAge, now) {
		metrics.Observer.Error(string(coin), "market")
		r.err = fmt.Errorf("market data: snapshot %v old", r.snapshot.Age(now))
		return r
	}

	err = e.withRetry(ctx, e.cfg.Market.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, e.cfg.Market.Timeout)
		defer cancel()
		var err error
		r.constraints, err = e.market.Constraints(ctx, coin)
		return err
	})
	if err != nil {
		metrics.Observer.Error(string(coin), "market")
		r.err = fmt.Errorf("constraints: %w", err)
		return r
	}

	r.indicators = e.indicators.Compute(r.snapshot.Candles[e.cfg.Timeframes[0]])

	started := e.clock.Now()
	oracleCtx, cancel := context.WithTimeout(ctx, e.cfg.Oracle.Timeout)
	defer cancel()
	decision, err := e.oracle.Decide(oracleCtx, r.snapshot, r.indicators, summary)
	r.latency = e.clock.Now().Sub(started)
	if err != nil {
		metrics.Observer.Error(string(coin), "oracle")
		r.decision = model.Hold(coin, fmt.Sprintf("oracle unavailable: %s", err))
		return r
	}
	if err := decision.Validate(); err != nil {
		metrics.Observer.Error(string(coin), "oracle")
		r.decision = model.Hold(coin, fmt.Sprintf("invalid decision: %s", err))
		return r
	}
	r.decision = decision
	return r
}

// summary builds the portfolio view shared with the oracle.
func (e *Engine) summary() model.Summary {
	portfolio := e.book.Portfolio()
	return model.Summary{
		Equity:    portfolio.Equity,
		Exposure:  portfolio.Exposure(),
		Drawdown:  portfolio.Drawdown(),
		Positions: e.ledger.Summary(),
	}
}

// monitor runs the lifecycle checks for an existing position against the fresh mark.
func (e *Engine) monitor(ctx context.Context, r result, now time.Time) {
	mark := r.snapshot.MarkPrice
	trigger := e.ledger.Evaluate(r.coin, mark, now)
	if trigger.Kind == ledger.TriggerNone {
		return
	}

	order, err := model.NewOrder(r.coin).
		WithType(trigger.Side.Close()).
		Market().
		WithVolume(r.constraints.RoundVolume(trigger.Volume)).
		Reduce().
		Create()
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not build exit order")
		return
	}

	fill, err := e.submit(ctx, order)
	if err != nil {
		log.Error().Err(err).
			Str("coin", string(r.coin)).
			Str("trigger", trigger.Kind.String()).
			Msg("exit order failed, will retry next cycle")
		metrics.Observer.Error(string(r.coin), "exchange")
		return
	}

	var pnl float64
	switch trigger.Kind {
	case ledger.TriggerStop:
		pnl, err = e.ledger.ApplyStop(*fill)
	case ledger.TriggerTimeExit:
		pnl, err = e.ledger.ApplyTimeExit(*fill)
	case ledger.TriggerTarget:
		pnl, err = e.ledger.ApplyTarget(*fill, trigger.Target)
	}
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not apply exit fill")
		return
	}

	metrics.Observer.Position(string(r.coin), trigger.Kind.String())
	e.book.RecordClose(r.coin, pnl, now)
}

// act validates the decision through the gate and takes new risk when allowed.
func (e *Engine) act(ctx context.Context, r result, equity float64, now time.Time) {
	d := r.decision

	verdict := e.gate.Validate(d, gate.Context{
		SpreadBps: r.snapshot.Book.SpreadBps,
		DataAge:   r.snapshot.Age(now),
		Latency:   r.latency,
	})
	metrics.Observer.Verdict(string(r.coin), verdict.Accepted)

	event := audit.New(audit.TypeVerdict, r.coin, now)
	event.Decision = &d
	event.Verdict = &verdict
	e.publish(event)

	if !verdict.Accepted {
		log.Debug().
			Str("coin", string(r.coin)).
			Str("action", d.Action.String()).
			Str("reason", verdict.Reason).
			Msg("decision rejected")
		return
	}

	switch {
	case d.Action.Entry():
		e.enter(ctx, r, equity, now)
	case d.Action.Reduces():
		e.reduce(ctx, r, now)
	}
}

// enter opens or extends a position for an accepted entry decision.
func (e *Engine) enter(ctx context.Context, r result, equity float64, now time.Time) {
	d := r.decision
	side := d.Action.Side()

	if existing, ok := e.ledger.Get(r.coin); ok {
		if existing.Side != side {
			log.Warn().
				Str("coin", string(r.coin)).
				Str("open", existing.Side.String()).
				Str("signal", side.String()).
				Msg("opposite signal against open position, holding")
			return
		}
		e.scaleIn(ctx, r, equity, now)
		return
	}

	if ok, reason := e.book.CanOpen(r.coin, d.Quality, e.ledger.Count(), now); !ok {
		event := audit.New(audit.TypeWarning, r.coin, now)
		event.Reason = reason
		e.publish(event)
		log.Info().Str("coin", string(r.coin)).Str("reason", reason).Msg("entry blocked")
		return
	}

	sized, err := e.sizer.Size(d, equity, e.ledger.Notional(), e.book.Multiplier(),
		r.indicators, r.snapshot.Book, r.constraints)
	if err != nil {
		log.Info().Err(err).Str("coin", string(r.coin)).Msg("sizing refused entry")
		return
	}

	event := audit.New(audit.TypeSizing, r.coin, now)
	event.Decision = &d
	event.Sizing = &sized
	e.publish(event)

	order, err := model.NewOrder(r.coin).
		WithType(typeFor(side)).
		Market().
		WithVolume(sized.Volume).
		WithLeverage(sized.Leverage).
		Create()
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not build entry order")
		return
	}

	fill, err := e.submit(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("entry order failed")
		metrics.Observer.Error(string(r.coin), "exchange")
		return
	}

	if _, err := e.ledger.Open(*fill, side, *d.Entry, sized.Leverage); err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not open position")
		return
	}
	e.book.RecordOpen(r.coin, now)
	metrics.Observer.Position(string(r.coin), "open")
}

// scaleIn extends a winning position after a fresh aligned entry signal.
func (e *Engine) scaleIn(ctx context.Context, r result, equity float64, now time.Time) {
	d := r.decision
	existing, _ := e.ledger.Get(r.coin)

	if !existing.State.CanScaleIn() {
		return
	}
	if rr := existing.R(r.snapshot.MarkPrice); rr < e.cfg.Risk.ScaleInMinR {
		log.Debug().
			Str("coin", string(r.coin)).
			Float64("r", rr).
			Msg("scale in needs more progress")
		return
	}

	if ok, reason := e.book.CanAdd(d.Quality, now); !ok {
		event := audit.New(audit.TypeWarning, r.coin, now)
		event.Reason = reason
		e.publish(event)
		log.Info().Str("coin", string(r.coin)).Str("reason", reason).Msg("scale in blocked")
		return
	}

	sized, err := e.sizer.Size(d, equity, e.ledger.Notional(), e.book.Multiplier(),
		r.indicators, r.snapshot.Book, r.constraints)
	if err != nil {
		log.Info().Err(err).Str("coin", string(r.coin)).Msg("sizing refused scale in")
		return
	}

	order, err := model.NewOrder(r.coin).
		WithType(typeFor(existing.Side)).
		Market().
		WithVolume(sized.Volume).
		WithLeverage(sized.Leverage).
		Ref(existing.ID).
		Create()
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not build scale in order")
		return
	}

	fill, err := e.submit(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("scale in order failed")
		metrics.Observer.Error(string(r.coin), "exchange")
		return
	}

	if _, err := e.ledger.ScaleIn(*fill); err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not extend position")
		return
	}
	e.book.RecordOpen(r.coin, now)
	metrics.Observer.Position(string(r.coin), "scale-in")
}

// reduce closes an open position on an explicit close decision.
func (e *Engine) reduce(ctx context.Context, r result, now time.Time) {
	d := r.decision
	existing, ok := e.ledger.Get(r.coin)
	if !ok {
		log.Debug().Str("coin", string(r.coin)).Str("action", d.Action.String()).Msg("nothing to reduce")
		return
	}
	if existing.Side != d.Action.Side() {
		log.Warn().
			Str("coin", string(r.coin)).
			Str("action", d.Action.String()).
			Str("side", existing.Side.String()).
			Msg("close signal side mismatch, holding")
		return
	}

	volume := existing.Size * existing.Remaining
	order, err := model.NewOrder(r.coin).
		WithType(existing.Side.Close()).
		Market().
		WithVolume(r.constraints.RoundVolume(volume)).
		Reduce().
		Ref(existing.ID).
		Create()
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not build close order")
		return
	}

	fill, err := e.submit(ctx, order)
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("close order failed")
		metrics.Observer.Error(string(r.coin), "exchange")
		return
	}

	pnl, err := e.ledger.Close(*fill)
	if err != nil {
		log.Error().Err(err).Str("coin", string(r.coin)).Msg("could not close position")
		return
	}
	e.book.RecordClose(r.coin, pnl, now)
	metrics.Observer.Position(string(r.coin), "closed")
}

func typeFor(side model.Side) model.Type {
	if side == model.Short {
		return model.Sell
	}
	return model.Buy
}
