package gate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/model"
)

func testGate() *Gate {
	return New(config.Gate{
		MinRiskReward: 2.0,
		MaxSpreadBps:  10,
		MaxDataAge:    90 * time.Second,
		MaxLatency:    30 * time.Second,
		Tiers:         config.DefaultTiers(),
	})
}

func decision(mutate ...func(*model.Decision)) model.Decision {
	d := model.Decision{
		Coin:       model.BTC,
		Action:     model.ActionBuy,
		Confidence: 0.78,
		Confluence: 5,
		Quality:    model.QualityA,
		RiskReward: 2.7,
		Liquidity:  model.LiquidityPass,
	}
	for _, m := range mutate {
		m(&d)
	}
	return d
}

func healthy() Context {
	return Context{SpreadBps: 2, DataAge: 10 * time.Second, Latency: time.Second}
}

func TestGate_Validate(t *testing.T) {
	tests := map[string]struct {
		decision model.Decision
		ctx      Context
		accepted bool
		reason   string
	}{
		"clean entry": {
			decision: decision(),
			ctx:      healthy(),
			accepted: true,
		},
		"hold always passes": {
			decision: model.Hold(model.BTC, "nothing to do"),
			ctx:      Context{SpreadBps: 50, DataAge: time.Hour},
			accepted: true,
		},
		"close always passes": {
			decision: decision(func(d *model.Decision) { d.Action = model.ActionCloseLong }),
			ctx:      Context{SpreadBps: 50},
			accepted: true,
		},
		"low confidence": {
			decision: decision(func(d *model.Decision) { d.Confidence = 0.55 }),
			ctx:      healthy(),
			reason:   "confidence",
		},
		"low confluence": {
			decision: decision(func(d *model.Decision) { d.Confluence = 3 }),
			ctx:      healthy(),
			reason:   "confluence",
		},
		"no setup": {
			decision: decision(func(d *model.Decision) { d.Quality = model.NoSetup }),
			ctx:      healthy(),
			reason:   "no setup",
		},
		"poor risk reward": {
			decision: decision(func(d *model.Decision) { d.RiskReward = 1.5 }),
			ctx:      healthy(),
			reason:   "risk/reward",
		},
		"liquidity fail": {
			decision: decision(func(d *model.Decision) { d.Liquidity = model.LiquidityFail }),
			ctx:      healthy(),
			reason:   "liquidity",
		},
		"wide spread": {
			decision: decision(),
			ctx:      Context{SpreadBps: 15, DataAge: 10 * time.Second},
			reason:   "FAIL-SAFE: unreliable venue conditions",
		},
		"stale data": {
			decision: decision(),
			ctx:      Context{SpreadBps: 2, DataAge: 3 * time.Minute},
			reason:   "FAIL-SAFE: unreliable venue conditions",
		},
		"slow oracle": {
			decision: decision(),
			ctx:      Context{SpreadBps: 2, DataAge: 10 * time.Second, Latency: time.Minute},
			reason:   "FAIL-SAFE: unreliable venue conditions",
		},
	}

	g := testGate()
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			verdict := g.Validate(tt.decision, tt.ctx)
			assert.Equal(t, tt.accepted, verdict.Accepted, verdict.Reason)
			if tt.reason != "" {
				assert.True(t, strings.Contains(verdict.Reason, tt.reason),
					"reason %q does not mention %q", verdict.Reason, tt.reason)
			}
		})
	}
}

func TestGate_ConfidenceBeatsConfluence(t *testing.T) {
	// both thresholds fail, the first rule in order names the reason
	g := testGate()
	verdict := g.Validate(decision(func(d *model.Decision) {
		d.Confidence = 0.2
		d.Confluence = 0
	}), healthy())
	assert.False(t, verdict.Accepted)
	assert.Contains(t, verdict.Reason, "confidence")
}

func TestGate_GrabTiers(t *testing.T) {
	tests := map[string]struct {
		grabBps    float64
		confidence float64
		confluence float64
		tier       string
		accepted   bool
	}{
		"micro grab relaxed thresholds":   {grabBps: 18, confidence: 0.42, confluence: 1, tier: "grab-micro", accepted: true},
		"micro grab still needs minimum":  {grabBps: 18, confidence: 0.35, confluence: 1, tier: "grab-micro", accepted: false},
		"standard grab":                   {grabBps: 40, confidence: 0.47, confluence: 2, tier: "grab-standard", accepted: true},
		"standard grab below confluence":  {grabBps: 40, confidence: 0.47, confluence: 1, tier: "grab-standard", accepted: false},
		"major grab open ended":           {grabBps: 120, confidence: 0.55, confluence: 3, tier: "grab-major", accepted: true},
		"major grab held to higher floor": {grabBps: 120, confidence: 0.42, confluence: 3, tier: "grab-major", accepted: false},
	}

	g := testGate()
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			d := decision(func(d *model.Decision) {
				d.Setup = model.Setup{Kind: model.SetupLiquidityGrab, GrabBps: tt.grabBps}
				d.Confidence = tt.confidence
				d.Confluence = tt.confluence
			})
			verdict := g.Validate(d, healthy())
			assert.Equal(t, tt.tier, verdict.Tier)
			assert.Equal(t, tt.accepted, verdict.Accepted, verdict.Reason)
		})
	}
}

func TestGate_IsPure(t *testing.T) {
	g := testGate()
	d := decision()
	ctx := healthy()
	first := g.Validate(d, ctx)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, g.Validate(d, ctx))
	}
}
