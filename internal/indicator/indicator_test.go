package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/velatrade/vela/internal/model"
)

func series(closes ...float64) []model.Candle {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, len(closes))
	for i, c := range closes {
		candles[i] = model.Candle{
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
			Time:  t0.Add(time.Duration(i) * time.Hour),
		}
	}
	return candles
}

func ramp(start, step float64, n int) []model.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return series(closes...)
}

func chop(base, amplitude float64, n int) []model.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = base
		if i%2 == 1 {
			closes[i] = base + amplitude
		}
	}
	return series(closes...)
}

func TestNew_PeriodFloor(t *testing.T) {
	assert.Equal(t, defaultPeriod, New(0).period)
	assert.Equal(t, defaultPeriod, New(-3).period)
	assert.Equal(t, 7, New(7).period)
}

func TestCompute_ShortSeriesIsZero(t *testing.T) {
	set := New(14)
	assert.Equal(t, model.IndicatorSet{}, set.Compute(nil))
	assert.Equal(t, model.IndicatorSet{}, set.Compute(ramp(100, 1, 14)))
	assert.NotEqual(t, model.IndicatorSet{}, set.Compute(ramp(100, 1, 15)))
}

func TestCompute_Uptrend(t *testing.T) {
	ind := New(14).Compute(ramp(100, 1, 40))

	assert.Greater(t, ind.ATRPercent, 0.0)
	// every close above the last, no down momentum at all
	assert.Equal(t, 100.0, ind.RSI)
	assert.Greater(t, ind.ADX, 50.0)
	assert.Greater(t, ind.RealisedVol, 0.0)
}

func TestCompute_Downtrend(t *testing.T) {
	ind := New(14).Compute(ramp(200, -1, 40))
	assert.Less(t, ind.RSI, 10.0)
	assert.Greater(t, ind.ADX, 50.0)
}

func TestCompute_ChopHasNoDirection(t *testing.T) {
	trending := New(14).Compute(ramp(100, 1, 40))
	choppy := New(14).Compute(chop(100, 2, 40))

	assert.Less(t, choppy.ADX, 25.0)
	assert.Less(t, choppy.ADX, trending.ADX)
	// rsi balanced between the extremes
	assert.Greater(t, choppy.RSI, 30.0)
	assert.Less(t, choppy.RSI, 70.0)
}

func TestCompute_FlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	candles := series(closes...)
	// collapse the range too, a truly dead market
	for i := range candles {
		candles[i].High = 100
		candles[i].Low = 100
	}

	ind := New(14).Compute(candles)
	assert.Equal(t, 0.0, ind.ATRPercent)
	assert.Equal(t, 0.0, ind.ADX)
	assert.Equal(t, 0.0, ind.RealisedVol)
}

func TestRealisedVol(t *testing.T) {
	assert.Equal(t, 0.0, RealisedVol(series(100)))
	assert.Equal(t, 0.0, RealisedVol(series(100, 100, 100)))

	calm := RealisedVol(chop(100, 0.5, 30))
	wild := RealisedVol(chop(100, 8, 30))
	assert.Greater(t, wild, calm)
}
