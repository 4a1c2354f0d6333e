package model

import (
	"math"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Time   time.Time `json:"time"`
}

// Orderbook is a reduced orderbook snapshot, enough for the liquidity
// and venue condition checks.
type Orderbook struct {
	BidDepth  float64   `json:"bid_depth"`
	AskDepth  float64   `json:"ask_depth"`
	SpreadBps float64   `json:"spread_bps"`
	Time      time.Time `json:"time"`
}

// Depth returns the smaller of the two visible book sides.
func (b Orderbook) Depth() float64 {
	return math.Min(b.BidDepth, b.AskDepth)
}

// Snapshot is a read only snapshot of one coin market, consumed from
// the market data provider.
type Snapshot struct {
	Coin         Coin                `json:"coin"`
	MarkPrice    float64             `json:"mark_price"`
	Candles      map[string][]Candle `json:"candles"`
	Book         Orderbook           `json:"book"`
	FundingRate  float64             `json:"funding_rate"`
	OpenInterest float64             `json:"open_interest"`
	Time         time.Time           `json:"time"`
}

// Age returns how old the snapshot is.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Time)
}

// Stale reports whether the snapshot is beyond the freshness bound
// and must be treated as unavailable.
func (s Snapshot) Stale(maxAge time.Duration, now time.Time) bool {
	return s.Age(now) > maxAge
}

// IndicatorSet is the finished numeric indicator set consumed from the
// indicator library. The engine never inspects how it was computed.
type IndicatorSet struct {
	ATRPercent  float64 `json:"atr_percent"`
	ADX         float64 `json:"adx"`
	RSI         float64 `json:"rsi"`
	RealisedVol float64 `json:"realised_vol"`
}

// Constraints carry the tick and lot rounding rules of the venue for a coin.
// Values are always rounded down, the engine never over-allocates.
type Constraints struct {
	TickSize float64 `json:"tick_size"`
	LotSize  float64 `json:"lot_size"`
}

// RoundPrice rounds a price down to the coin tick.
func (c Constraints) RoundPrice(p float64) float64 {
	return RoundDown(p, c.TickSize)
}

// RoundVolume rounds a volume down to the coin lot.
func (c Constraints) RoundVolume(v float64) float64 {
	return RoundDown(v, c.LotSize)
}
