package model

import (
	"fmt"
	"time"
)

// Portfolio is the single shared portfolio aggregate. Only the risk book
// mutates it; everything else reads a copy.
type Portfolio struct {
	Equity          float64   `json:"equity"`
	Peak            float64   `json:"peak"`
	DrawdownLow     float64   `json:"drawdown_low"`
	Notional        float64   `json:"notional"`
	DailyPnL        float64   `json:"daily_pnl"`
	WeeklyPnL       float64   `json:"weekly_pnl"`
	Day             string    `json:"day"`
	Week            string    `json:"week"`
	TradesToday     int       `json:"trades_today"`
	ConsecLosses    int       `json:"consecutive_losses"`
	LastClose       time.Time `json:"last_close"`
	Emergency       bool      `json:"emergency"`
	EmergencyReason string    `json:"emergency_reason"`
}

// Exposure returns the notional open value as a fraction of equity.
func (p Portfolio) Exposure() float64 {
	if p.Equity <= 0 {
		return 0
	}
	return p.Notional / p.Equity
}

// Drawdown returns the distance of equity from its peak as a fraction of the peak.
func (p Portfolio) Drawdown() float64 {
	if p.Peak <= 0 {
		return 0
	}
	dd := (p.Peak - p.Equity) / p.Peak
	if dd < 0 {
		return 0
	}
	return dd
}

// Day and ISO week keys for the pnl reset boundaries, always UTC.

func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func WeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-w%02d", year, week)
}

// PositionSummary is the reduced position view shared with the oracle.
type PositionSummary struct {
	Coin Coin    `json:"coin"`
	Side Side    `json:"side"`
	PnL  float64 `json:"pnl"`
	R    float64 `json:"r"`
}

// Summary is the portfolio view shared with the decision oracle every cycle.
type Summary struct {
	Equity    float64           `json:"equity"`
	Exposure  float64           `json:"exposure"`
	Drawdown  float64           `json:"drawdown"`
	Positions []PositionSummary `json:"positions"`
}
