package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velatrade/vela/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []model.Coin{model.BTC, model.ETH}, cfg.Coins)
	assert.Equal(t, []string{"1h", "4h"}, cfg.Timeframes)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 24*time.Hour, cfg.Risk.MaxHold)
	assert.Equal(t, 1.0, cfg.Risk.ScaleInMinR)
	assert.Equal(t, 2.0, cfg.Gate.MinRiskReward)
	assert.Len(t, cfg.Gate.Tiers, 4)
	assert.Equal(t, 6021, cfg.Server.Port)
	assert.Equal(t, "vela-audit", cfg.Audit.Topic)
	assert.Empty(t, cfg.Audit.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VELA_COINS", "SOL, LINK")
	t.Setenv("VELA_RISK_PER_TRADE", "0.01")
	t.Setenv("VELA_INTERVAL", "1m")
	t.Setenv("VELA_MAX_POSITIONS", "5")
	t.Setenv("VELA_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []model.Coin{model.SOL, model.LINK}, cfg.Coins)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTrade)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 5, cfg.Risk.MaxPositions)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.Brokers)
}

func TestLoad_UnknownCoin(t *testing.T) {
	t.Setenv("VELA_COINS", "DOGECOIN2000")
	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown coin")
}

func TestLoad_BadValueFallsBack(t *testing.T) {
	t.Setenv("VELA_RISK_PER_TRADE", "lots")
	t.Setenv("VELA_INTERVAL", "soon")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 5*time.Minute, cfg.Interval)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Coins:    []model.Coin{model.BTC},
			Interval: time.Minute,
			Risk: Risk{
				RiskPerTrade:    0.02,
				MaxExposure:     0.7,
				MaxDrawdown:     0.20,
				MaxStopDistance: 0.10,
			},
		}
	}

	tests := map[string]struct {
		mutate func(*Config)
		errMsg string
	}{
		"valid":            {mutate: func(c *Config) {}},
		"no coins":         {mutate: func(c *Config) { c.Coins = nil }, errMsg: "no coins"},
		"risk too high":    {mutate: func(c *Config) { c.Risk.RiskPerTrade = 0.10 }, errMsg: "risk per trade"},
		"risk zero":        {mutate: func(c *Config) { c.Risk.RiskPerTrade = 0 }, errMsg: "risk per trade"},
		"exposure above 1": {mutate: func(c *Config) { c.Risk.MaxExposure = 1.5 }, errMsg: "max exposure"},
		"drawdown at 1":    {mutate: func(c *Config) { c.Risk.MaxDrawdown = 1 }, errMsg: "max drawdown"},
		"no stop distance": {mutate: func(c *Config) { c.Risk.MaxStopDistance = 0 }, errMsg: "max stop distance"},
		"no interval":      {mutate: func(c *Config) { c.Interval = 0 }, errMsg: "interval"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidate_JoinsAllProblems(t *testing.T) {
	err := (&Config{}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no coins")
	assert.Contains(t, err.Error(), "risk per trade")
	assert.Contains(t, err.Error(), "interval")
}

func TestLoadTiers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.json")
	body := `[
		{"name": "standard", "setup": "standard", "min_confidence": 0.70, "min_confluence": 5},
		{"name": "grab-micro", "setup": "liquidity-grab", "max_grab_bps": 20, "min_confidence": 0.35, "min_confluence": 1}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, Tier{Name: "standard", Setup: "standard", MinConfidence: 0.70, MinConfluence: 5}, tiers[0])
	assert.Equal(t, 20.0, tiers[1].MaxGrabBps)

	_, err = LoadTiers(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestDefaultTiers_GrabRowsAreOrdered(t *testing.T) {
	tiers := DefaultTiers()
	var prev float64
	for _, tier := range tiers {
		if tier.Setup != "liquidity-grab" || tier.MaxGrabBps == 0 {
			continue
		}
		assert.Greater(t, tier.MaxGrabBps, prev, "banded grab rows must widen monotonically")
		prev = tier.MaxGrabBps
	}
}
