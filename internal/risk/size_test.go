package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/model"
)

func riskConfig() config.Risk {
	return config.Risk{
		RiskPerTrade:      0.02,
		MaxPositionSize:   10000,
		MaxExposure:       0.7,
		MaxStopDistance:   0.10,
		LiquidityFraction: 0.05,
		MarginFraction:    0.01,
		MajorLeverage:     10,
		LargeCapLeverage:  5,
		SmallCapLeverage:  3,
	}
}

func entry(price, invalidation float64) *model.Entry {
	return &model.Entry{Price: price, Invalidation: invalidation}
}

func buy(coin model.Coin, confidence float64, e *model.Entry) model.Decision {
	return model.Decision{
		Coin:       coin,
		Action:     model.ActionBuy,
		Confidence: confidence,
		Regime:     model.Regime{Label: model.RegimeTrendingBull, Strength: 0.8},
		Entry:      e,
	}
}

func calm() model.IndicatorSet {
	return model.IndicatorSet{ATRPercent: 1.5, ADX: 30}
}

func deepBook() model.Orderbook {
	return model.Orderbook{BidDepth: 1_000_000, AskDepth: 1_000_000}
}

func TestSizer_Size(t *testing.T) {
	tests := map[string]struct {
		decision     model.Decision
		equity       float64
		openNotional float64
		multiplier   float64
		indicators   model.IndicatorSet
		book         model.Orderbook
		notional     float64
		leverage     float64
		err          error
	}{
		"capped by max position size": {
			// raw notional 2000 / 0.0212 is far above the per asset cap
			decision:   buy(model.BTC, 0.78, entry(44850, 43900)),
			equity:     100_000,
			multiplier: 1.0,
			indicators: calm(),
			book:       deepBook(),
			notional:   10000,
			leverage:   10,
		},
		"capped by visible liquidity": {
			decision:   buy(model.BTC, 0.78, entry(44850, 43900)),
			equity:     100_000,
			multiplier: 1.0,
			indicators: calm(),
			book:       model.Orderbook{BidDepth: 50_000, AskDepth: 80_000},
			notional:   2500,
			leverage:   2,
		},
		"capped by exposure budget": {
			decision:     buy(model.BTC, 0.78, entry(44850, 43900)),
			equity:       100_000,
			openNotional: 66_000,
			multiplier:   1.0,
			indicators:   calm(),
			book:         deepBook(),
			notional:     4000,
			leverage:     4,
		},
		"tiny size fails the leverage floor": {
			// confidence 0.62 halves risk and the leverage cap,
			// 100000*0.02*0.5*0.04/0.05 = 800 notional on 1000 margin is 0.8x
			decision:   buy(model.BTC, 0.62, entry(100, 95)),
			equity:     100_000,
			multiplier: 0.04,
			indicators: calm(),
			book:       deepBook(),
			notional:   800,
			// cap halved for confidence below 0.7, then floor(800/1000) fails
			err: ErrLeverage,
		},
		"ranging regime halves risk": {
			decision: func() model.Decision {
				d := buy(model.BTC, 0.78, entry(100, 95))
				d.Regime = model.Regime{Label: model.RegimeRanging, Strength: 0.3}
				return d
			}(),
			equity:     100_000,
			multiplier: 0.125,
			indicators: calm(),
			book:       deepBook(),
			notional:   2500,
			leverage:   2,
		},
		"high volatility halves risk and leverage cap": {
			decision:   buy(model.BTC, 0.78, entry(100, 95)),
			equity:     100_000,
			multiplier: 1.0,
			indicators: model.IndicatorSet{ATRPercent: 4.2, ADX: 30},
			book:       deepBook(),
			notional:   10000,
			leverage:   5,
		},
		"weak trend caps notional": {
			decision:   buy(model.BTC, 0.78, entry(100, 95)),
			equity:     100_000,
			multiplier: 0.25,
			indicators: model.IndicatorSet{ATRPercent: 1.5, ADX: 15},
			book:       deepBook(),
			notional:   5000,
			leverage:   5,
		},
		"small cap leverage tier": {
			decision:   buy(model.Coin("PEPE"), 0.78, entry(100, 95)),
			equity:     100_000,
			multiplier: 1.0,
			indicators: calm(),
			book:       deepBook(),
			notional:   10000,
			leverage:   3,
		},
		"no entry": {
			decision:   model.Hold(model.BTC, "nothing"),
			equity:     100_000,
			multiplier: 1.0,
			indicators: calm(),
			book:       deepBook(),
			err:        ErrNoStop,
		},
		"stop too wide": {
			decision:   buy(model.BTC, 0.78, entry(100, 85)),
			equity:     100_000,
			multiplier: 1.0,
			indicators: calm(),
			book:       deepBook(),
			err:        ErrStopTooWide,
		},
		"budget exhausted": {
			decision:     buy(model.BTC, 0.78, entry(100, 95)),
			equity:       100_000,
			openNotional: 70_000,
			multiplier:   1.0,
			indicators:   calm(),
			book:         deepBook(),
			err:          ErrZeroSize,
		},
	}

	sizer := NewSizer(riskConfig())
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			result, err := sizer.Size(tt.decision, tt.equity, tt.openNotional, tt.multiplier,
				tt.indicators, tt.book, model.Constraints{})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.notional, result.Notional, 1e-6)
			assert.Equal(t, tt.leverage, result.Leverage)
			assert.Greater(t, result.DollarRisk, 0.0)
		})
	}
}

func TestSizer_LotRounding(t *testing.T) {
	sizer := NewSizer(riskConfig())
	d := buy(model.BTC, 0.78, entry(44850, 43900))
	result, err := sizer.Size(d, 100_000, 0, 1.0, calm(), deepBook(),
		model.Constraints{LotSize: 0.01})
	assert.NoError(t, err)
	// 10000 / 44850 = 0.22297 rounds down to the lot
	assert.InDelta(t, 0.22, result.Volume, 1e-9)
	assert.InDelta(t, 0.22*44850, result.Notional, 1e-6)
}

func TestSizer_CheckExposure(t *testing.T) {
	sizer := NewSizer(riskConfig())
	assert.True(t, sizer.CheckExposure(100_000, 0, 60_000))
	assert.True(t, sizer.CheckExposure(100_000, 60_000, 10_000))
	assert.False(t, sizer.CheckExposure(100_000, 60_000, 20_000))
	assert.False(t, sizer.CheckExposure(0, 0, 1))
}
