// Package indicator computes the finished indicator set the engine consumes.
// All formulas follow the standard Wilder definitions over OHLC bars.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/velatrade/vela/internal/model"
)

const defaultPeriod = 14

// Set computes indicators over a fixed lookback period.
type Set struct {
	period int
}

func New(period int) Set {
	if period < 2 {
		period = defaultPeriod
	}
	return Set{period: period}
}

// Compute derives the indicator set from the candle series.
// Too short a series yields zero values, the gate treats those as missing.
func (s Set) Compute(candles []model.Candle) model.IndicatorSet {
	if len(candles) < s.period+1 {
		return model.IndicatorSet{}
	}
	return model.IndicatorSet{
		ATRPercent:  s.atrPercent(candles),
		ADX:         s.adx(candles),
		RSI:         s.rsi(candles),
		RealisedVol: RealisedVol(candles),
	}
}

func trueRange(prev, cur model.Candle) float64 {
	return math.Max(cur.High-cur.Low,
		math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// atrPercent is the Wilder smoothed average true range relative to the last close.
func (s Set) atrPercent(candles []model.Candle) float64 {
	atr := 0.0
	for i := 1; i <= s.period; i++ {
		atr += trueRange(candles[i-1], candles[i])
	}
	atr /= float64(s.period)
	for i := s.period + 1; i < len(candles); i++ {
		atr = (atr*float64(s.period-1) + trueRange(candles[i-1], candles[i])) / float64(s.period)
	}

	last := candles[len(candles)-1].Close
	if last == 0 {
		return 0
	}
	return atr / last * 100
}

// adx is the Wilder average directional index.
func (s Set) adx(candles []model.Candle) float64 {
	n := float64(s.period)
	var trSum, plusSum, minusSum float64
	var dxs []float64

	var atr, plusDM, minusDM float64
	for i := 1; i < len(candles); i++ {
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		plus := 0.0
		if up > down && up > 0 {
			plus = up
		}
		minus := 0.0
		if down > up && down > 0 {
			minus = down
		}
		tr := trueRange(candles[i-1], candles[i])

		if i <= s.period {
			trSum += tr
			plusSum += plus
			minusSum += minus
			if i < s.period {
				continue
			}
			atr, plusDM, minusDM = trSum, plusSum, minusSum
		} else {
			atr = atr - atr/n + tr
			plusDM = plusDM - plusDM/n + plus
			minusDM = minusDM - minusDM/n + minus
		}

		if atr == 0 {
			continue
		}
		plusDI := 100 * plusDM / atr
		minusDI := 100 * minusDM / atr
		if sum := plusDI + minusDI; sum > 0 {
			dxs = append(dxs, 100*math.Abs(plusDI-minusDI)/sum)
		}
	}

	if len(dxs) == 0 {
		return 0
	}
	if len(dxs) < s.period {
		return stat.Mean(dxs, nil)
	}
	adx := stat.Mean(dxs[:s.period], nil)
	for _, dx := range dxs[s.period:] {
		adx = (adx*(n-1) + dx) / n
	}
	return adx
}

// rsi is the Wilder relative strength index over closes.
func (s Set) rsi(candles []model.Candle) float64 {
	var gain, loss float64
	for i := 1; i <= s.period; i++ {
		delta := candles[i].Close - candles[i-1].Close
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	n := float64(s.period)
	gain /= n
	loss /= n
	for i := s.period + 1; i < len(candles); i++ {
		delta := candles[i].Close - candles[i-1].Close
		g, l := 0.0, 0.0
		if delta > 0 {
			g = delta
		} else {
			l = -delta
		}
		gain = (gain*(n-1) + g) / n
		loss = (loss*(n-1) + l) / n
	}
	if loss == 0 {
		return 100
	}
	return 100 - 100/(1+gain/loss)
}

// RealisedVol is the standard deviation of log returns over the series,
// expressed in percent.
func RealisedVol(candles []model.Candle) float64 {
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close <= 0 || candles[i].Close <= 0 {
			continue
		}
		returns = append(returns, math.Log(candles[i].Close/candles[i-1].Close))
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * 100
}
