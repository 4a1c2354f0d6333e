package gate

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/model"
)

// Context carries the venue conditions a decision is validated against.
type Context struct {
	SpreadBps float64
	DataAge   time.Duration
	Latency   time.Duration
}

// Verdict is the outcome of validating one decision.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Tier     string `json:"tier"`
	Reason   string `json:"reason"`
}

func accept(tier string) Verdict {
	return Verdict{Accepted: true, Tier: tier, Reason: "ok"}
}

func reject(tier, format string, args ...interface{}) Verdict {
	return Verdict{Tier: tier, Reason: fmt.Sprintf(format, args...)}
}

// Gate validates oracle decisions against the configured threshold table
// and the venue conditions. It is a pure function of its inputs, it keeps
// no state and has no side effects beyond logging.
type Gate struct {
	cfg config.Gate
}

func New(cfg config.Gate) *Gate {
	return &Gate{cfg: cfg}
}

// Validate applies the gate rules in order, the first failing rule is the reason.
func (g *Gate) Validate(d model.Decision, ctx Context) Verdict {
	if d.Action == model.ActionHold || d.Action.Reduces() {
		// no new risk taken
		return accept("none")
	}

	tier := g.tier(d.Setup)

	if d.Confidence < tier.MinConfidence {
		return reject(tier.Name, "confidence %.2f below %.2f", d.Confidence, tier.MinConfidence)
	}
	if d.Confluence < tier.MinConfluence {
		return reject(tier.Name, "confluence %.1f below %.1f", d.Confluence, tier.MinConfluence)
	}
	if d.Quality == model.NoSetup {
		return reject(tier.Name, "no setup behind decision")
	}
	if g.cfg.MinRiskReward > 0 && d.RiskReward < g.cfg.MinRiskReward {
		return reject(tier.Name, "risk/reward %.2f below %.2f", d.RiskReward, g.cfg.MinRiskReward)
	}
	if d.Liquidity == model.LiquidityFail {
		return reject(tier.Name, "oracle liquidity check failed")
	}
	if ctx.SpreadBps > g.cfg.MaxSpreadBps {
		return reject(tier.Name, "FAIL-SAFE: unreliable venue conditions: spread %.1f bps above %.1f", ctx.SpreadBps, g.cfg.MaxSpreadBps)
	}
	if ctx.DataAge > g.cfg.MaxDataAge {
		return reject(tier.Name, "FAIL-SAFE: unreliable venue conditions: data %s old", ctx.DataAge)
	}
	if g.cfg.MaxLatency > 0 && ctx.Latency > g.cfg.MaxLatency {
		return reject(tier.Name, "FAIL-SAFE: unreliable venue conditions: latency %s", ctx.Latency)
	}

	return accept(tier.Name)
}

// tier picks the threshold row matching the decision setup.
// Grab rows are banded by magnitude, a zero MaxGrabBps row is open ended.
func (g *Gate) tier(setup model.Setup) config.Tier {
	var fallback *config.Tier
	for i, t := range g.cfg.Tiers {
		if t.Setup != setup.Kind.String() {
			continue
		}
		if setup.Kind == model.SetupStandard {
			return t
		}
		if t.MaxGrabBps == 0 {
			if fallback == nil {
				fallback = &g.cfg.Tiers[i]
			}
			continue
		}
		if setup.GrabBps < t.MaxGrabBps {
			return t
		}
	}
	if fallback != nil {
		return *fallback
	}
	// an unknown setup falls back on the strictest defaults
	log.Warn().Str("setup", setup.Kind.String()).Msg("no tier for setup, using standard thresholds")
	return config.Tier{Name: "standard", MinConfidence: 0.60, MinConfluence: 4}
}
