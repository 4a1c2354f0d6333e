package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/model"
)

var (
	// ErrNoStop means the decision carried no usable invalidation level.
	ErrNoStop = errors.New("no stop distance")
	// ErrStopTooWide means the stop distance exceeds the sane maximum.
	ErrStopTooWide = errors.New("stop distance too wide")
	// ErrZeroSize means the clamps drove the size to nothing.
	ErrZeroSize = errors.New("size clamped to zero")
	// ErrLeverage means the derived leverage dropped below 1x.
	ErrLeverage = errors.New("leverage below 1x")
)

const (
	highVolatility  = 3.0
	adxLowThreshold = 20.0
	adxLowCap       = 0.5
)

// Result is the outcome of sizing one entry.
type Result struct {
	Notional     float64 `json:"notional"`
	Volume       float64 `json:"volume"`
	Leverage     float64 `json:"leverage"`
	StopDistance float64 `json:"stop_distance"`
	DollarRisk   float64 `json:"dollar_risk"`
	Notes        string  `json:"notes"`
}

// Sizer is the stateless position sizing arithmetic. A sizing failure is
// not an error path for the cycle, the caller degrades the decision to hold.
type Sizer struct {
	cfg config.Risk
}

func NewSizer(cfg config.Risk) Sizer {
	return Sizer{cfg: cfg}
}

// Size computes the notional, volume and leverage for an entry decision.
// multiplier is the drawdown band multiplier from the risk book;
// openNotional is the portfolio wide open value consumed so far this cycle.
func (s Sizer) Size(d model.Decision, equity, openNotional, multiplier float64,
	ind model.IndicatorSet, book model.Orderbook, c model.Constraints) (Result, error) {

	if d.Entry == nil {
		return Result{}, ErrNoStop
	}
	entry := *d.Entry

	stopDistance := entry.StopDistance()
	if stopDistance <= 0 {
		return Result{}, ErrNoStop
	}
	if stopDistance > s.cfg.MaxStopDistance {
		return Result{}, fmt.Errorf("%w: %.4f above %.4f", ErrStopTooWide, stopDistance, s.cfg.MaxStopDistance)
	}

	riskPct := s.cfg.RiskPerTrade * confidenceFactor(d.Confidence) * regimeFactor(d.Regime) * multiplier

	volatility := ind.ATRPercent
	if volatility == 0 {
		volatility = ind.RealisedVol
	}
	notes := "normal volatility"
	if volatility > highVolatility {
		riskPct *= 0.5
		notes = "high volatility: size halved"
	}

	dollarRisk := equity * riskPct
	notional := dollarRisk / stopDistance

	// clamp to the configured per asset maximum, the visible liquidity
	// and the remaining portfolio exposure budget, whichever is smallest
	budget := s.cfg.MaxExposure*equity - openNotional
	notional = math.Min(notional, s.cfg.MaxPositionSize)
	if depth := book.Depth(); depth > 0 {
		notional = math.Min(notional, depth*s.cfg.LiquidityFraction)
	}
	notional = math.Min(notional, budget)

	if ind.ADX > 0 && ind.ADX < adxLowThreshold {
		notional *= adxLowCap
		notes = fmt.Sprintf("%s, adx %.1f: size capped", notes, ind.ADX)
	}

	if notional <= 0 {
		return Result{}, ErrZeroSize
	}

	volume := c.RoundVolume(notional / entry.Price)
	if volume <= 0 {
		return Result{}, ErrZeroSize
	}
	notional = volume * entry.Price

	leverage, err := s.leverage(d.Coin, notional, equity, volatility, d.Confidence)
	if err != nil {
		return Result{}, err
	}

	log.Debug().
		Str("coin", string(d.Coin)).
		Float64("notional", notional).
		Float64("volume", volume).
		Float64("leverage", leverage).
		Float64("stop-distance", stopDistance).
		Msg("sized entry")

	return Result{
		Notional:     notional,
		Volume:       volume,
		Leverage:     leverage,
		StopDistance: stopDistance,
		DollarRisk:   dollarRisk,
		Notes:        notes,
	}, nil
}

// CheckExposure reports whether the proposed notional fits the remaining exposure budget.
func (s Sizer) CheckExposure(equity, openNotional, proposed float64) bool {
	if equity <= 0 {
		return false
	}
	return openNotional+proposed <= s.cfg.MaxExposure*equity+model.Epsilon
}

// leverage derives the leverage from the notional and the margin allocated
// for the trade, then caps it by the coin tier. Elevated volatility and sub
// threshold confidence halve the cap.
func (s Sizer) leverage(coin model.Coin, notional, equity, volatility, confidence float64) (float64, error) {
	margin := equity * s.cfg.MarginFraction
	if margin <= 0 {
		return 0, ErrLeverage
	}

	limit := s.tierCap(coin)
	if volatility > highVolatility {
		limit = math.Max(1, math.Floor(limit/2))
	}
	if confidence < 0.7 {
		limit = math.Max(1, math.Floor(limit/2))
	}

	leverage := math.Min(notional/margin, limit)
	if leverage < 1 {
		return 0, fmt.Errorf("%w: %.2f", ErrLeverage, leverage)
	}
	return math.Floor(leverage), nil
}

func (s Sizer) tierCap(coin model.Coin) float64 {
	switch model.CoinTier(coin) {
	case model.Major:
		return s.cfg.MajorLeverage
	case model.LargeCap:
		return s.cfg.LargeCapLeverage
	default:
		return s.cfg.SmallCapLeverage
	}
}

func confidenceFactor(confidence float64) float64 {
	switch {
	case confidence > 0.75:
		return 1.0
	case confidence > 0.65:
		return 0.75
	default:
		return 0.5
	}
}

func regimeFactor(regime model.Regime) float64 {
	switch regime.Label {
	case model.RegimeRanging:
		return 0.5
	case model.RegimeHighVolatility:
		return 0.6
	default:
		return 1.0
	}
}
