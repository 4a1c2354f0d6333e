package model

import (
	"fmt"
	"math"
	"time"
)

// Action defines the verdict of the decision oracle for one coin.
type Action byte

const (
	// NoAction defines a missing action.
	NoAction Action = iota
	// ActionBuy opens or extends a long position.
	ActionBuy
	// ActionSell opens or extends a short position.
	ActionSell
	// ActionHold takes no risk.
	ActionHold
	// ActionCloseLong closes an open long position.
	ActionCloseLong
	// ActionCloseShort closes an open short position.
	ActionCloseShort
	// ActionReduceLong reduces an open long position.
	ActionReduceLong
	// ActionReduceShort reduces an open short position.
	ActionReduceShort
)

var actionNames = map[Action]string{
	ActionBuy:         "BUY",
	ActionSell:        "SELL",
	ActionHold:        "HOLD",
	ActionCloseLong:   "CLOSE_LONG",
	ActionCloseShort:  "CLOSE_SHORT",
	ActionReduceLong:  "REDUCE_LONG",
	ActionReduceShort: "REDUCE_SHORT",
}

func (a Action) String() string {
	return actionNames[a]
}

// ParseAction parses the wire representation of an action.
func ParseAction(s string) (Action, error) {
	for a, name := range actionNames {
		if name == s {
			return a, nil
		}
	}
	return NoAction, fmt.Errorf("unknown action '%s'", s)
}

// Entry returns true for actions that put new risk on.
func (a Action) Entry() bool {
	return a == ActionBuy || a == ActionSell
}

// Reduces returns true for actions that only take risk off.
func (a Action) Reduces() bool {
	switch a {
	case ActionCloseLong, ActionCloseShort, ActionReduceLong, ActionReduceShort:
		return true
	}
	return false
}

// Side returns the position side an entry action would open.
func (a Action) Side() Side {
	switch a {
	case ActionBuy:
		return Long
	case ActionSell:
		return Short
	case ActionCloseLong, ActionReduceLong:
		return Long
	case ActionCloseShort, ActionReduceShort:
		return Short
	}
	return NoSide
}

// Quality grades the setup behind a decision.
// The order matters, higher is better.
type Quality byte

const (
	// NoSetup means the oracle saw nothing worth trading.
	NoSetup Quality = iota
	QualityC
	QualityB
	QualityA
	QualityAPlus
)

var qualityNames = map[Quality]string{
	NoSetup:      "NONE",
	QualityC:     "C",
	QualityB:     "B",
	QualityA:     "A",
	QualityAPlus: "A+",
}

func (q Quality) String() string {
	return qualityNames[q]
}

// ParseQuality parses the wire representation of a setup quality.
func ParseQuality(s string) (Quality, error) {
	for q, name := range qualityNames {
		if name == s {
			return q, nil
		}
	}
	return NoSetup, fmt.Errorf("unknown setup quality '%s'", s)
}

// Regime labels the current market regime.
type Regime struct {
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
}

const (
	RegimeTrendingBull   = "TRENDING_BULL"
	RegimeTrendingBear   = "TRENDING_BEAR"
	RegimeRanging        = "RANGING"
	RegimeHighVolatility = "HIGH_VOLATILITY"
	RegimeLowVolatility  = "LOW_VOLATILITY"
	RegimeBreakout       = "BREAKOUT"
	RegimeBreakdown      = "BREAKDOWN"
)

// SetupKind separates the standard setups from the opportunistic liquidity grab ones,
// which trade on their own threshold tier.
type SetupKind byte

const (
	SetupStandard SetupKind = iota
	SetupLiquidityGrab
)

func (k SetupKind) String() string {
	if k == SetupLiquidityGrab {
		return "liquidity-grab"
	}
	return "standard"
}

// Setup identifies the setup family of the decision.
type Setup struct {
	Kind SetupKind `json:"kind"`
	// GrabBps is the magnitude of the liquidity grab in basis points,
	// zero for standard setups.
	GrabBps float64 `json:"grab_bps"`
}

// Target defines one take profit level with the fraction of the
// original position size to close at it.
type Target struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
}

// TrailConfig defines the trailing stop configuration suggested by the oracle.
type TrailConfig struct {
	ActivateAtR float64 `json:"activate_at_r"`
	TrailAtR    float64 `json:"trail_at_r"`
}

// Entry carries the price levels for an entry decision.
// Hold and close decisions carry none.
type Entry struct {
	Price        float64     `json:"price"`
	Invalidation float64     `json:"invalidation"`
	Targets      []Target    `json:"targets"`
	Trailing     TrailConfig `json:"trailing"`
}

// Decision is the structured output of the decision oracle.
// It is untrusted external input, it must pass Validate and the gate
// before it can influence any state.
type Decision struct {
	Coin       Coin      `json:"coin"`
	Action     Action    `json:"action"`
	Confidence float64   `json:"confidence"`
	Confluence float64   `json:"confluence"`
	Quality    Quality   `json:"quality"`
	Regime     Regime    `json:"regime"`
	Setup      Setup     `json:"setup"`
	RiskReward float64   `json:"risk_reward"`
	Liquidity  string    `json:"liquidity"`
	Entry      *Entry    `json:"entry,omitempty"`
	Rationale  string    `json:"rationale"`
	Time       time.Time `json:"time"`
}

// Liquidity verdicts as reported by the oracle risk assessment.
const (
	LiquidityPass     = "PASS"
	LiquidityMarginal = "MARGINAL"
	LiquidityFail     = "FAIL"
)

// Hold creates a trivial hold decision, used to degrade on any failure.
func Hold(coin Coin, rationale string) Decision {
	return Decision{
		Coin:      coin,
		Action:    ActionHold,
		Rationale: rationale,
		Time:      time.Now(),
	}
}

// Validate checks the decision schema.
// A decision failing validation must be treated as hold, never as a crash.
func (d Decision) Validate() error {
	if d.Coin == NoCoin {
		return fmt.Errorf("decision without coin")
	}
	if d.Action == NoAction {
		return fmt.Errorf("decision without action")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("confidence %.2f out of [0,1]", d.Confidence)
	}
	if d.Confluence < 0 || d.Confluence > 10 {
		return fmt.Errorf("confluence %.1f out of [0,10]", d.Confluence)
	}
	if !d.Action.Entry() {
		return nil
	}
	if d.Entry == nil {
		return fmt.Errorf("%s decision without entry levels", d.Action)
	}
	return d.Entry.validate(d.Action.Side())
}

func (e Entry) validate(side Side) error {
	if e.Price <= 0 {
		return fmt.Errorf("entry price %.4f must be positive", e.Price)
	}
	if e.Invalidation <= 0 {
		return fmt.Errorf("invalidation price %.4f must be positive", e.Invalidation)
	}
	if side.Sign()*(e.Price-e.Invalidation) <= 0 {
		return fmt.Errorf("invalidation %.4f on the wrong side of entry %.4f for %s", e.Invalidation, e.Price, side)
	}
	if len(e.Targets) == 0 {
		return fmt.Errorf("entry without take profit targets")
	}
	sum := 0.0
	last := e.Price
	for i, tp := range e.Targets {
		if tp.Fraction <= 0 || tp.Fraction > 1 {
			return fmt.Errorf("target %d fraction %.2f out of (0,1]", i+1, tp.Fraction)
		}
		if side.Sign()*(tp.Price-last) <= 0 {
			return fmt.Errorf("target %d price %.4f not beyond %.4f for %s", i+1, tp.Price, last, side)
		}
		last = tp.Price
		sum += tp.Fraction
	}
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("target fractions sum to %.4f, want 1.0", sum)
	}
	return nil
}

// StopDistance returns the relative distance between entry and invalidation.
func (e Entry) StopDistance() float64 {
	if e.Price == 0 {
		return 0
	}
	return math.Abs(e.Price-e.Invalidation) / e.Price
}
