package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// State defines the lifecycle state of a position.
type State byte

const (
	// PendingEntry means the opening order is submitted but not yet filled.
	PendingEntry State = iota
	// Open means the position is live at full size.
	Open
	// Partial1 means the first take profit fired.
	Partial1
	// Partial2 means the second take profit fired.
	Partial2
	// Trailing means the stop is now trailing the price.
	Trailing
	// Closed means the position was fully closed by the take profit
	// cascade or by an explicit close.
	Closed
	// StoppedOut means the stop price was touched.
	StoppedOut
	// TimeExit means the position was closed for lack of progress.
	TimeExit
)

var stateNames = map[State]string{
	PendingEntry: "pending-entry",
	Open:         "open",
	Partial1:     "partial-1",
	Partial2:     "partial-2",
	Trailing:     "trailing",
	Closed:       "closed",
	StoppedOut:   "stopped-out",
	TimeExit:     "time-exit",
}

func (s State) String() string {
	return stateNames[s]
}

// Terminal returns true when no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case Closed, StoppedOut, TimeExit:
		return true
	}
	return false
}

// CanScaleIn returns true for the states from which a position may be extended.
func (s State) CanScaleIn() bool {
	switch s {
	case Open, Partial1, Partial2:
		return true
	}
	return false
}

// TakeProfit is one scale-out level of a position.
type TakeProfit struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
	Fired    bool    `json:"fired"`
}

// Position defines an open position and its lifecycle bookkeeping.
// Size is the original size in base units; Remaining is the fraction of it
// still open. The sum of fired fractions and Remaining is always 1.
type Position struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"order_id"`
	Coin          Coin         `json:"coin"`
	Side          Side         `json:"side"`
	State         State        `json:"state"`
	EntryPrice    float64      `json:"entry_price"`
	Size          float64      `json:"size"`
	Leverage      float64      `json:"leverage"`
	Remaining     float64      `json:"remaining"`
	StopLoss      float64      `json:"stop_loss"`
	InitialStop   float64      `json:"initial_stop"`
	BreakEven     bool         `json:"break_even"`
	TrailActive   bool         `json:"trail_active"`
	Trail         TrailConfig  `json:"trail"`
	Targets       []TakeProfit `json:"targets"`
	OpenTime      time.Time    `json:"open_time"`
	CurrentTime   time.Time    `json:"current_time"`
	CurrentPrice  float64      `json:"current_price"`
	RealisedPnL   float64      `json:"realised_pnl"`
	UnrealisedPnL float64      `json:"unrealised_pnl"`
}

// OpenPosition creates a position from a fill and the entry levels that produced it.
func OpenPosition(fill Fill, side Side, entry Entry, leverage float64) Position {
	targets := make([]TakeProfit, len(entry.Targets))
	for i, tp := range entry.Targets {
		targets[i] = TakeProfit{
			Price:    tp.Price,
			Fraction: tp.Fraction,
		}
	}
	return Position{
		ID:           uuid.New().String(),
		OrderID:      fill.OrderID,
		Coin:         fill.Coin,
		Side:         side,
		State:        Open,
		EntryPrice:   fill.Price,
		Size:         fill.Volume,
		Leverage:     leverage,
		Remaining:    1.0,
		StopLoss:     entry.Invalidation,
		InitialStop:  entry.Invalidation,
		Trail:        entry.Trailing,
		Targets:      targets,
		OpenTime:     fill.Time,
		CurrentTime:  fill.Time,
		CurrentPrice: fill.Price,
	}
}

// Update refreshes the unrealised pnl against the given mark price.
func (p *Position) Update(mark float64, now time.Time) {
	p.CurrentPrice = mark
	p.CurrentTime = now
	p.UnrealisedPnL = PnL(p.Side, p.Size*p.Remaining, p.EntryPrice, mark)
}

// Notional returns the open value of the position at the given mark price.
func (p Position) Notional(mark float64) float64 {
	return math.Abs(p.Size * p.Remaining * mark)
}

// InitialRisk returns the dollar risk per unit taken at entry.
func (p Position) InitialRisk() float64 {
	return math.Abs(p.EntryPrice - p.InitialStop)
}

// R returns the unrealised profit as a multiple of the initial risk.
func (p Position) R(mark float64) float64 {
	risk := p.InitialRisk()
	if risk == 0 {
		return 0
	}
	return p.Side.Sign() * (mark - p.EntryPrice) / risk
}

// ClosedFraction sums the fractions already taken off.
func (p Position) ClosedFraction() float64 {
	sum := 0.0
	for _, tp := range p.Targets {
		if tp.Fired {
			sum += tp.Fraction
		}
	}
	return sum
}

// CheckInvariant verifies closed fractions and the remaining fraction add up to the full size.
func (p Position) CheckInvariant() error {
	if total := p.ClosedFraction() + p.Remaining; !p.State.Terminal() && math.Abs(total-1.0) > 1e-6 {
		return fmt.Errorf("%w: closed %.6f + remaining %.6f != 1.0 for %s",
			ErrInvariant, p.ClosedFraction(), p.Remaining, p.Coin)
	}
	return nil
}

// StopHit returns true when the mark price crossed the stop in the adverse direction.
func (p Position) StopHit(mark float64) bool {
	if p.StopLoss == 0 {
		return false
	}
	return p.Side.Sign()*(mark-p.StopLoss) <= 0
}

// NextTarget returns the first unfired take profit level.
func (p Position) NextTarget() (int, *TakeProfit) {
	for i := range p.Targets {
		if !p.Targets[i].Fired {
			return i, &p.Targets[i]
		}
	}
	return -1, nil
}

// TargetHit returns true when the mark price reached the given take profit level.
func (p Position) TargetHit(tp TakeProfit, mark float64) bool {
	return p.Side.Sign()*(mark-tp.Price) >= 0
}

// MoveStop moves the stop to the given price.
// Once the stop passed breakeven it may only move in the protective direction.
func (p *Position) MoveStop(price float64) error {
	if price <= 0 {
		return fmt.Errorf("%w: stop price %.4f", ErrInvariant, price)
	}
	if p.BreakEven && p.Side.Sign()*(price-p.StopLoss) < 0 {
		return fmt.Errorf("%w: %.4f loosens %.4f for %s %s",
			ErrStopLoosened, price, p.StopLoss, p.Side, p.Coin)
	}
	p.StopLoss = price
	return nil
}

// MoveStopToBreakEven pins the stop at the entry price, locking the position risk free.
func (p *Position) MoveStopToBreakEven() error {
	if p.BreakEven {
		return nil
	}
	p.StopLoss = p.EntryPrice
	p.BreakEven = true
	return nil
}

// ArmTrail turns the trailing stop on once the position has run far enough
// in the money, as configured by the oracle entry levels.
func (p *Position) ArmTrail(mark float64) bool {
	if p.TrailActive || p.Trail.ActivateAtR <= 0 {
		return false
	}
	if p.R(mark) >= p.Trail.ActivateAtR {
		p.TrailActive = true
		return true
	}
	return false
}

// TrailStop tightens the trailing stop against the given mark price.
// The distance is the initial risk scaled by the trail factor; the stop never loosens.
func (p *Position) TrailStop(mark float64) bool {
	if !p.TrailActive {
		return false
	}
	distance := p.InitialRisk() * p.Trail.TrailAtR
	if distance == 0 {
		return false
	}
	candidate := mark - p.Side.Sign()*distance
	if p.Side.Sign()*(candidate-p.StopLoss) > 0 {
		p.StopLoss = candidate
		return true
	}
	return false
}

// Age returns the time the position has been held.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.OpenTime)
}
