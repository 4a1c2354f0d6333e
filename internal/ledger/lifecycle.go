package ledger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/model"
)

// TriggerKind identifies the exit action a position asks for on a tick.
type TriggerKind byte

const (
	// TriggerNone means no exit fired, the position only needs a refresh.
	TriggerNone TriggerKind = iota
	// TriggerStop means the stop price was touched.
	TriggerStop
	// TriggerTarget means the next take profit level was reached.
	TriggerTarget
	// TriggerTimeExit means the position went stale without progress.
	TriggerTimeExit
)

var triggerNames = map[TriggerKind]string{
	TriggerNone:     "none",
	TriggerStop:     "stop",
	TriggerTarget:   "take-profit",
	TriggerTimeExit: "time-exit",
}

func (k TriggerKind) String() string {
	return triggerNames[k]
}

// Trigger is the single action a position requires on a monitoring tick.
// Volume is the amount in base units the engine should close.
type Trigger struct {
	Kind   TriggerKind
	Coin   model.Coin
	Side   model.Side
	Target int
	Volume float64
	Price  float64
}

// Evaluate checks the position for the coin against the mark price and returns
// at most one trigger. Checks run in fixed order, the stop wins over everything,
// then the take profit cascade, then the time exit. When nothing fires the
// position is refreshed in place and the trailing stop is tightened.
func (l *Ledger) Evaluate(coin model.Coin, mark float64, now time.Time) Trigger {
	l.lock.Lock()
	defer l.lock.Unlock()

	none := Trigger{Kind: TriggerNone, Coin: coin}
	p, ok := l.positions[coin]
	if !ok || p.State.Terminal() {
		return none
	}

	if p.StopHit(mark) {
		return Trigger{
			Kind:   TriggerStop,
			Coin:   coin,
			Side:   p.Side,
			Volume: p.Size * p.Remaining,
			Price:  p.StopLoss,
		}
	}

	if i, tp := p.NextTarget(); tp != nil && p.TargetHit(*tp, mark) {
		volume := p.Size * tp.Fraction
		if remainder := p.Size * p.Remaining; volume > remainder {
			volume = remainder
		}
		return Trigger{
			Kind:   TriggerTarget,
			Coin:   coin,
			Side:   p.Side,
			Target: i,
			Volume: volume,
			Price:  tp.Price,
		}
	}

	if p.Age(now) > l.cfg.MaxHold {
		if r := p.R(mark); r > -l.cfg.TimeExitMinR && r < l.cfg.TimeExitMinR {
			return Trigger{
				Kind:   TriggerTimeExit,
				Coin:   coin,
				Side:   p.Side,
				Volume: p.Size * p.Remaining,
				Price:  mark,
			}
		}
	}

	p.Update(mark, now)
	if p.ArmTrail(mark) {
		log.Debug().
			Str("coin", string(coin)).
			Float64("r", p.R(mark)).
			Msg("trailing stop armed")
	}
	if p.TrailStop(mark) {
		if p.State == model.Partial2 {
			p.State = model.Trailing
		}
		log.Debug().
			Str("coin", string(coin)).
			Float64("stop", p.StopLoss).
			Float64("mark", mark).
			Msg("trailing stop tightened")
		l.transition(p)
		if err := l.save(); err != nil {
			log.Error().Err(err).Str("coin", string(coin)).Msg("could not persist ledger")
		}
	}
	return none
}

// ApplyStop settles the remainder of the position at the stop fill.
func (l *Ledger) ApplyStop(fill model.Fill) (float64, error) {
	return l.settle(fill, model.StoppedOut)
}

// ApplyTimeExit settles the remainder of the position after a stale exit fill.
func (l *Ledger) ApplyTimeExit(fill model.Fill) (float64, error) {
	return l.settle(fill, model.TimeExit)
}

// ApplyTarget realizes the take profit fill for the given target index and
// advances the state machine. The first target moves the stop to breakeven,
// the second enables the trailing stop. The realized pnl for the closed slice
// is returned, net of fees.
func (l *Ledger) ApplyTarget(fill model.Fill, index int) (float64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	p, ok := l.positions[fill.Coin]
	if !ok {
		return 0, fmt.Errorf("no position for %s", fill.Coin)
	}
	if index < 0 || index >= len(p.Targets) {
		return 0, fmt.Errorf("no target %d for %s", index, fill.Coin)
	}
	if p.Targets[index].Fired {
		return 0, fmt.Errorf("target %d already fired for %s", index, fill.Coin)
	}

	// work on a copy, commit only when the books still balance
	next := *p
	next.Targets = make([]model.TakeProfit, len(p.Targets))
	copy(next.Targets, p.Targets)
	next.Targets[index].Fired = true
	next.Remaining -= next.Targets[index].Fraction
	if next.Remaining < model.Epsilon {
		next.Remaining = 0
	}

	pnl := model.PnL(next.Side, fill.Volume, next.EntryPrice, fill.Price) - fill.Fees
	next.RealisedPnL += pnl

	switch {
	case next.Remaining == 0:
		next.State = model.Closed
	case index == 0:
		next.State = model.Partial1
		if err := next.MoveStopToBreakEven(); err != nil {
			return 0, err
		}
	default:
		next.State = model.Partial2
		next.TrailActive = true
	}
	next.Update(fill.Price, fill.Time)

	if err := next.CheckInvariant(); err != nil {
		return 0, err
	}
	*p = next
	l.transition(p)

	log.Info().
		Str("coin", string(fill.Coin)).
		Int("target", index+1).
		Float64("volume", fill.Volume).
		Float64("price", fill.Price).
		Float64("pnl", pnl).
		Float64("remaining", p.Remaining).
		Str("state", p.State.String()).
		Msg("take profit filled")

	if p.State.Terminal() {
		l.remove(fill.Coin)
	} else if err := l.save(); err != nil {
		log.Error().Err(err).Str("coin", string(fill.Coin)).Msg("could not persist ledger")
	}
	return pnl, nil
}

// settle closes the remainder of a position into the given terminal state and
// returns the realized pnl for the closed slice, net of fees.
func (l *Ledger) settle(fill model.Fill, terminal model.State) (float64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	p, ok := l.positions[fill.Coin]
	if !ok {
		return 0, fmt.Errorf("no position for %s", fill.Coin)
	}

	pnl := model.PnL(p.Side, fill.Volume, p.EntryPrice, fill.Price) - fill.Fees
	p.RealisedPnL += pnl
	p.Remaining = 0
	p.State = terminal
	p.Update(fill.Price, fill.Time)
	p.UnrealisedPnL = 0
	l.transition(p)

	total := p.RealisedPnL
	event := audit.New(audit.TypeFill, fill.Coin, fill.Time)
	f := fill
	event.Fill = &f
	event.Reason = terminal.String()
	l.publisher.Publish(event)

	log.Info().
		Str("coin", string(fill.Coin)).
		Str("state", terminal.String()).
		Float64("volume", fill.Volume).
		Float64("price", fill.Price).
		Float64("pnl", pnl).
		Float64("total", total).
		Msg("closed position")

	l.remove(fill.Coin)
	return pnl, nil
}
