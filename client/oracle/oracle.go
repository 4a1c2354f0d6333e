// Package oracle is the client of the remote decision service.
// Its output is untrusted input, every response is schema checked before
// it leaves this package.
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/api"
	"github.com/velatrade/vela/internal/model"
)

type Client struct {
	client *resty.Client
}

func New(cfg config.Remote) *Client {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Key != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.Key))
	}
	return &Client{client: client}
}

type request struct {
	Snapshot   model.Snapshot     `json:"snapshot"`
	Indicators model.IndicatorSet `json:"indicators"`
	Portfolio  model.Summary      `json:"portfolio"`
}

// wireDecision is the raw response schema. Enumerations arrive as strings
// and are parsed strictly, anything unknown fails the whole decision.
type wireDecision struct {
	Coin       string       `json:"coin"`
	Action     string       `json:"action"`
	Confidence float64      `json:"confidence"`
	Confluence float64      `json:"confluence"`
	Quality    string       `json:"quality"`
	Regime     model.Regime `json:"regime"`
	Setup      wireSetup    `json:"setup"`
	RiskReward float64      `json:"risk_reward"`
	Liquidity  string       `json:"liquidity"`
	Entry      *model.Entry `json:"entry,omitempty"`
	Rationale  string       `json:"rationale"`
}

type wireSetup struct {
	Kind    string  `json:"kind"`
	GrabBps float64 `json:"grab_bps"`
}

func (c *Client) Decide(ctx context.Context, snapshot model.Snapshot, indicators model.IndicatorSet, summary model.Summary) (model.Decision, error) {
	var payload wireDecision
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request{Snapshot: snapshot, Indicators: indicators, Portfolio: summary}).
		SetResult(&payload).
		Post("/v1/decide")
	if err != nil {
		return model.Decision{}, fmt.Errorf("oracle: %s: %w", err, api.ErrUnavailable)
	}
	if resp.IsError() {
		return model.Decision{}, fmt.Errorf("oracle: status %d: %w", resp.StatusCode(), api.ErrUnavailable)
	}

	decision, err := parse(payload)
	if err != nil {
		return model.Decision{}, err
	}
	log.Debug().
		Str("coin", string(decision.Coin)).
		Str("action", decision.Action.String()).
		Float64("confidence", decision.Confidence).
		Msg("oracle decision")
	return decision, nil
}

func parse(payload wireDecision) (model.Decision, error) {
	action, err := model.ParseAction(payload.Action)
	if err != nil {
		return model.Decision{}, fmt.Errorf("oracle schema: %w", err)
	}
	quality, err := model.ParseQuality(payload.Quality)
	if err != nil {
		return model.Decision{}, fmt.Errorf("oracle schema: %w", err)
	}
	setup, err := parseSetup(payload.Setup)
	if err != nil {
		return model.Decision{}, fmt.Errorf("oracle schema: %w", err)
	}

	decision := model.Decision{
		Coin:       model.Coin(payload.Coin),
		Action:     action,
		Confidence: payload.Confidence,
		Confluence: payload.Confluence,
		Quality:    quality,
		Regime:     payload.Regime,
		Setup:      setup,
		RiskReward: payload.RiskReward,
		Liquidity:  payload.Liquidity,
		Entry:      payload.Entry,
		Rationale:  payload.Rationale,
		Time:       time.Now(),
	}
	if err := decision.Validate(); err != nil {
		return model.Decision{}, fmt.Errorf("oracle schema: %w", err)
	}
	return decision, nil
}

func parseSetup(w wireSetup) (model.Setup, error) {
	switch w.Kind {
	case "", "STANDARD":
		return model.Setup{Kind: model.SetupStandard}, nil
	case "LIQUIDITY_GRAB":
		return model.Setup{Kind: model.SetupLiquidityGrab, GrabBps: w.GrabBps}, nil
	}
	return model.Setup{}, fmt.Errorf("unknown setup kind '%s'", w.Kind)
}
