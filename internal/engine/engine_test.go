package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velatrade/vela/client/local"
	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/indicator"
	"github.com/velatrade/vela/internal/ledger"
	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/risk"
	"github.com/velatrade/vela/internal/storage"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(coins ...model.Coin) *config.Config {
	return &config.Config{
		Coins:      coins,
		Timeframes: []string{"1h"},
		Interval:   5 * time.Minute,
		Risk: config.Risk{
			RiskPerTrade:      0.02,
			MaxPositionSize:   10000,
			MaxExposure:       0.7,
			MaxStopDistance:   0.10,
			LiquidityFraction: 0.05,
			MarginFraction:    0.01,
			MajorLeverage:     10,
			LargeCapLeverage:  5,
			SmallCapLeverage:  3,
			DailyLossLimit:    0.05,
			WeeklyLossLimit:   0.10,
			MaxDrawdown:       0.20,
			RecoveryFraction:  0.05,
			MaxTradesPerDay:   10,
			MaxPositions:      3,
			MinSpacing:        30 * time.Minute,
			MaxHold:           24 * time.Hour,
			TimeExitMinR:      0.25,
			ScaleInMinR:       1.0,
		},
		Gate: config.Gate{
			MinRiskReward: 2.0,
			MaxSpreadBps:  10,
			MaxDataAge:    90 * time.Second,
			MaxLatency:    30 * time.Second,
			Tiers:         config.DefaultTiers(),
		},
		Market: config.Remote{Timeout: time.Second, Retries: 2},
		Oracle: config.Remote{Timeout: time.Second},
	}
}

type harness struct {
	engine   *Engine
	market   *local.Market
	oracle   *local.Oracle
	exchange *local.Exchange
	book     *risk.Book
	ledger   *ledger.Ledger
	capture  *audit.Capture
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	market := local.NewMarket()
	orc := local.NewOracle()
	exchange := local.NewExchange(100_000)
	capture := audit.NewCapture()
	book := risk.NewBook(cfg.Risk)

	ldg, err := ledger.New(cfg.Risk, storage.NewLocalStorage(), capture)
	require.NoError(t, err)

	eng := New(cfg, Deps{
		Market:     market,
		Indicators: indicator.New(14),
		Oracle:     orc,
		Exchange:   exchange,
		Book:       book,
		Ledger:     ldg,
		Publisher:  capture,
		Clock:      api.ClockFunc(func() time.Time { return t0 }),
	})
	return &harness{
		engine:   eng,
		market:   market,
		oracle:   orc,
		exchange: exchange,
		book:     book,
		ledger:   ldg,
		capture:  capture,
	}
}

func (h *harness) price(coin model.Coin, mark float64) {
	h.market.Set(local.NewSnapshot(coin, mark, t0))
	h.exchange.Mark(coin, mark)
}

func buyDecision(coin model.Coin) model.Decision {
	return model.Decision{
		Coin:       coin,
		Action:     model.ActionBuy,
		Confidence: 0.78,
		Confluence: 5,
		Quality:    model.QualityA,
		Regime:     model.Regime{Label: model.RegimeTrendingBull, Strength: 0.8},
		RiskReward: 2.7,
		Liquidity:  model.LiquidityPass,
		Entry: &model.Entry{
			Price:        44850,
			Invalidation: 43900,
			Targets: []model.Target{
				{Price: 45800, Fraction: 0.3},
				{Price: 46750, Fraction: 0.4},
				{Price: 47700, Fraction: 0.3},
			},
			Trailing: model.TrailConfig{ActivateAtR: 2.0, TrailAtR: 1.0},
		},
		Rationale: "breakout retest held",
		Time:      t0,
	}
}

func TestEngine_OpensPosition(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())

	require.Equal(t, 1, h.ledger.Count())
	p, ok := h.ledger.Get(model.BTC)
	require.True(t, ok)
	assert.Equal(t, model.Long, p.Side)
	assert.Equal(t, model.Open, p.State)
	assert.Equal(t, 44850.0, p.EntryPrice)
	assert.Equal(t, 43900.0, p.StopLoss)
	// the per asset cap binds before the raw risk derived notional
	assert.InDelta(t, 10000.0, p.Size*p.EntryPrice, 1.0)
	assert.Equal(t, 10.0, p.Leverage)

	portfolio := h.book.Portfolio()
	assert.Equal(t, 1, portfolio.TradesToday)
}

func TestEngine_DegradedAssetIsIsolated(t *testing.T) {
	h := newHarness(t, testConfig(model.ETH, model.BTC))
	// no snapshot installed for ETH, its fetch fails
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())

	assert.Equal(t, 1, h.ledger.Count())
	_, ok := h.ledger.Get(model.BTC)
	assert.True(t, ok)
}

func TestEngine_RejectedDecisionDoesNotTrade(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)

	d := buyDecision(model.BTC)
	d.Confidence = 0.41
	h.oracle.Script(d)

	h.engine.Cycle(context.Background())

	assert.Equal(t, 0, h.ledger.Count())
	assert.Empty(t, h.exchange.Orders)
}

func TestEngine_EmergencyBlocksEntries(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)

	// establish the peak, then gap equity down past the drawdown limit
	h.engine.Cycle(context.Background())
	h.exchange.SetBalance(79_000)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())

	assert.Equal(t, risk.Emergency, h.engine.Band())
	assert.Equal(t, 0, h.ledger.Count())
	assert.Empty(t, h.exchange.Orders)
}

func TestEngine_StopOutRecordsLoss(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())
	require.Equal(t, 1, h.ledger.Count())

	// mark gaps through the stop
	h.price(model.BTC, 43800)
	h.engine.Cycle(context.Background())

	assert.Equal(t, 0, h.ledger.Count())
	portfolio := h.book.Portfolio()
	assert.Less(t, portfolio.DailyPnL, 0.0)
	assert.Equal(t, 1, portfolio.ConsecLosses)
}

func TestEngine_TakeProfitMovesStopToBreakEven(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())
	require.Equal(t, 1, h.ledger.Count())

	h.price(model.BTC, 45800)
	h.engine.Cycle(context.Background())

	p, ok := h.ledger.Get(model.BTC)
	require.True(t, ok)
	assert.Equal(t, model.Partial1, p.State)
	assert.InDelta(t, 0.7, p.Remaining, 1e-9)
	assert.Equal(t, 44850.0, p.StopLoss)
	portfolio := h.book.Portfolio()
	assert.Greater(t, portfolio.DailyPnL, 0.0)
}

func TestEngine_AmbiguousSubmitChecksBeforeResubmit(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	// venue executes but the ack is lost, the fill must come from Check
	h.exchange.FailNext(1, api.ErrUnavailable, true)
	h.engine.Cycle(context.Background())

	assert.Equal(t, 1, h.ledger.Count())
	assert.Len(t, h.exchange.Orders, 1)
}

func TestEngine_DroppedSubmitIsResentOnce(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	// venue never saw the order, a single resubmission is safe
	h.exchange.FailNext(1, api.ErrUnavailable, false)
	h.engine.Cycle(context.Background())

	assert.Equal(t, 1, h.ledger.Count())
	assert.Len(t, h.exchange.Orders, 2)
}

func TestEngine_OrdersResolveOnceConfirmed(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())

	require.Equal(t, 1, h.ledger.Count())
	assert.Equal(t, 0, h.engine.Status().Orders)
}

func TestEngine_ReconcilesUnresolvedOrderOnShutdown(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	// the venue executes but neither the ack nor the status check get through
	h.exchange.FailNext(1, api.ErrUnavailable, true)
	h.exchange.FailCheck(api.ErrUnavailable)
	h.engine.Cycle(context.Background())

	assert.Equal(t, 0, h.ledger.Count())
	assert.Equal(t, 1, h.engine.Status().Orders)

	// the status check recovers, shutdown settles the dangling order
	h.exchange.FailCheck(nil)
	h.oracle.Script(model.Hold(model.BTC, "standing by"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = h.engine.Run(ctx)

	assert.Equal(t, 0, h.engine.Status().Orders)
}

func TestEngine_OracleTimeoutDegradesToHold(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))
	h.oracle.Delay(2 * time.Second)

	h.engine.Cycle(context.Background())

	assert.Equal(t, 0, h.ledger.Count())
	assert.Empty(t, h.exchange.Orders)
}

func TestEngine_ScaleInExtendsWinner(t *testing.T) {
	cfg := testConfig(model.BTC)
	cfg.Risk.ScaleInMinR = 0.5
	h := newHarness(t, cfg)
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())
	require.Equal(t, 1, h.ledger.Count())
	opened, _ := h.ledger.Get(model.BTC)

	// the same signal fires again with the position just under +1R
	h.price(model.BTC, 45790)
	h.engine.Cycle(context.Background())

	p, ok := h.ledger.Get(model.BTC)
	require.True(t, ok)
	assert.Greater(t, p.Size, opened.Size)
	assert.Len(t, h.exchange.Orders, 2)
	// an add spends the daily trade budget like any other entry
	assert.Equal(t, 2, h.book.Portfolio().TradesToday)
}

func TestEngine_ReducedBandBlocksWeakScaleIn(t *testing.T) {
	cfg := testConfig(model.BTC)
	cfg.Risk.ScaleInMinR = 0.5
	h := newHarness(t, cfg)
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())
	require.Equal(t, 1, h.ledger.Count())
	opened, _ := h.ledger.Get(model.BTC)

	// equity gaps into the reduced band, then a C quality aligned signal
	// lands on the winning position
	h.exchange.SetBalance(88_000)
	h.price(model.BTC, 45790)
	d := buyDecision(model.BTC)
	d.Quality = model.QualityC
	h.oracle.Script(d)

	h.engine.Cycle(context.Background())

	assert.Equal(t, risk.Reduced, h.engine.Band())
	p, ok := h.ledger.Get(model.BTC)
	require.True(t, ok)
	assert.Equal(t, opened.Size, p.Size)
	assert.Len(t, h.exchange.Orders, 1)
	assert.Equal(t, 1, h.book.Portfolio().TradesToday)
}

func TestEngine_MinSpacingBlocksImmediateReentry(t *testing.T) {
	h := newHarness(t, testConfig(model.BTC))
	h.price(model.BTC, 44850)
	h.oracle.Script(buyDecision(model.BTC))

	h.engine.Cycle(context.Background())
	require.Equal(t, 1, h.ledger.Count())

	// stop out, then the same signal fires again within the spacing window
	h.price(model.BTC, 43800)
	h.engine.Cycle(context.Background())
	require.Equal(t, 0, h.ledger.Count())

	h.price(model.BTC, 44850)
	h.engine.Cycle(context.Background())
	assert.Equal(t, 0, h.ledger.Count())
}
