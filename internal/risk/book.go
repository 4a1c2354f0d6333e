package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/storage"
)

// Band is the portfolio risk posture, driven by the drawdown from peak equity.
type Band byte

const (
	// Normal applies the full risk parameters.
	Normal Band = iota
	// Reduced cuts size to 0.7x and only takes A or better setups.
	Reduced
	// Restricted cuts size to 0.5x and only takes A+ setups.
	Restricted
	// Emergency takes no new risk at all. Sticky, requires an explicit reset.
	Emergency
)

var bandNames = map[Band]string{
	Normal:     "normal",
	Reduced:    "reduced",
	Restricted: "restricted",
	Emergency:  "emergency",
}

func (b Band) String() string {
	return bandNames[b]
}

// Multiplier is the position size multiplier for the band.
func (b Band) Multiplier() float64 {
	switch b {
	case Normal:
		return 1.0
	case Reduced:
		return 0.7
	case Restricted:
		return 0.5
	}
	return 0
}

// QualityFloor is the minimum setup quality the band accepts.
func (b Band) QualityFloor() model.Quality {
	switch b {
	case Reduced:
		return model.QualityA
	case Restricted:
		return model.QualityAPlus
	}
	return model.NoSetup
}

// Book owns the portfolio aggregate. It is the single point of truth for
// whether new risk may be taken; nothing else mutates the portfolio.
type Book struct {
	cfg       config.Risk
	portfolio model.Portfolio
	band      Band
	lastEntry map[model.Coin]time.Time
	store     storage.Persistence
	lock      *sync.RWMutex
}

func NewBook(cfg config.Risk) *Book {
	return &Book{
		cfg:       cfg,
		lastEntry: make(map[model.Coin]time.Time),
		lock:      new(sync.RWMutex),
	}
}

// MarkEquity feeds the current equity and open notional into the book.
// It rolls the daily and weekly counters, keeps the peak high water mark
// and runs the drawdown band transition. It runs on every equity update,
// whether or not a trade is attempted.
func (b *Book) MarkEquity(equity, notional float64, now time.Time) Band {
	b.lock.Lock()
	defer b.lock.Unlock()

	p := &b.portfolio
	b.roll(now)

	p.Equity = equity
	p.Notional = notional
	if equity > p.Peak {
		p.Peak = equity
	}

	band := b.transition(now)
	b.save()
	return band
}

// roll resets the daily and weekly pnl counters on their UTC boundaries.
func (b *Book) roll(now time.Time) {
	p := &b.portfolio
	if day := model.DayKey(now); p.Day != day {
		if p.Day != "" {
			log.Info().Str("day", day).Float64("pnl", p.DailyPnL).Msg("new trading day")
		}
		p.Day = day
		p.DailyPnL = 0
		p.TradesToday = 0
		p.ConsecLosses = 0
	}
	if week := model.WeekKey(now); p.Week != week {
		p.Week = week
		p.WeeklyPnL = 0
	}
}

// transition runs the drawdown band state machine. Entering a more
// restrictive band happens immediately; recovery requires equity to clear
// the configured fraction above the drawdown low, so the band does not
// oscillate at the boundary.
func (b *Book) transition(now time.Time) Band {
	p := &b.portfolio

	if b.band == Emergency {
		return Emergency
	}

	dd := p.Drawdown()
	if dd >= b.cfg.MaxDrawdown {
		return b.trip(fmt.Sprintf("drawdown %.1f%% of peak", dd*100))
	}
	if p.Equity > 0 && p.DailyPnL <= -b.cfg.DailyLossLimit*p.Equity {
		return b.trip(fmt.Sprintf("daily loss %.0f at limit", -p.DailyPnL))
	}
	if p.Equity > 0 && p.WeeklyPnL <= -b.cfg.WeeklyLossLimit*p.Equity {
		return b.trip(fmt.Sprintf("weekly loss %.0f at limit", -p.WeeklyPnL))
	}

	target := bandFor(dd)
	switch {
	case target >= b.band:
		b.setBand(target)
	default:
		// recovery path, gated by hysteresis
		if p.DrawdownLow > 0 && p.Equity >= p.DrawdownLow*(1+b.cfg.RecoveryFraction) {
			b.setBand(target)
			if target == Normal {
				p.DrawdownLow = 0
			}
		}
	}

	if b.band > Normal {
		if p.DrawdownLow == 0 || p.Equity < p.DrawdownLow {
			p.DrawdownLow = p.Equity
		}
	}
	return b.band
}

func bandFor(drawdown float64) Band {
	switch {
	case drawdown < 0.10:
		return Normal
	case drawdown < 0.15:
		return Reduced
	default:
		return Restricted
	}
}

func (b *Book) setBand(band Band) {
	if band == b.band {
		return
	}
	log.Warn().
		Str("from", b.band.String()).
		Str("to", band.String()).
		Float64("equity", b.portfolio.Equity).
		Float64("peak", b.portfolio.Peak).
		Msg("risk band transition")
	b.band = band
}

func (b *Book) trip(reason string) Band {
	if b.band != Emergency {
		log.Error().Str("reason", reason).Msg("EMERGENCY STOP")
	}
	b.band = Emergency
	b.portfolio.Emergency = true
	b.portfolio.EmergencyReason = reason
	return Emergency
}

// CanOpen runs the advisory gates for putting new risk on the given coin.
// It mutates nothing.
func (b *Book) CanOpen(coin model.Coin, quality model.Quality, openPositions int, now time.Time) (bool, string) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	p := b.portfolio
	if b.band == Emergency {
		return false, "emergency stop active"
	}
	if floor := b.band.QualityFloor(); quality < floor {
		return false, fmt.Sprintf("band %s takes %s or better, got %s", b.band, floor, quality)
	}
	if p.TradesToday >= b.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("max trades per day reached (%d)", b.cfg.MaxTradesPerDay)
	}
	if openPositions >= b.cfg.MaxPositions {
		return false, fmt.Sprintf("max concurrent positions reached (%d)", b.cfg.MaxPositions)
	}
	if ok, reason := b.cooldown(now); !ok {
		return false, reason
	}
	if last, ok := b.lastEntry[coin]; ok {
		if elapsed := now.Sub(last); elapsed < b.cfg.MinSpacing {
			return false, fmt.Sprintf("spacing: %s since last %s entry, want %s", elapsed, coin, b.cfg.MinSpacing)
		}
	}
	return true, ""
}

// CanAdd runs the gates for extending an existing position. An add is new
// risk like any other entry, only the per-asset spacing and the position
// count do not apply to it.
func (b *Book) CanAdd(quality model.Quality, now time.Time) (bool, string) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	if b.band == Emergency {
		return false, "emergency stop active"
	}
	if floor := b.band.QualityFloor(); quality < floor {
		return false, fmt.Sprintf("band %s takes %s or better, got %s", b.band, floor, quality)
	}
	if b.portfolio.TradesToday >= b.cfg.MaxTradesPerDay {
		return false, fmt.Sprintf("max trades per day reached (%d)", b.cfg.MaxTradesPerDay)
	}
	if ok, reason := b.cooldown(now); !ok {
		return false, reason
	}
	return true, ""
}

// cooldown enforces the escalating pause after consecutive losing closes.
func (b *Book) cooldown(now time.Time) (bool, string) {
	losses := b.portfolio.ConsecLosses
	if losses < 2 {
		return true, ""
	}
	if losses >= 4 {
		return false, "4 consecutive losses, done for the day"
	}
	pause := 2 * time.Hour
	if losses == 3 {
		pause = 4 * time.Hour
	}
	if since := now.Sub(b.portfolio.LastClose); since < pause {
		return false, fmt.Sprintf("cooldown %s after %d losses, %s elapsed", pause, losses, since)
	}
	return true, ""
}

// RecordOpen registers a new entry for the trade counters and asset spacing.
func (b *Book) RecordOpen(coin model.Coin, now time.Time) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.portfolio.TradesToday++
	b.lastEntry[coin] = now
	b.save()
}

// RecordClose registers a realised pnl from a full or partial close.
func (b *Book) RecordClose(coin model.Coin, pnl float64, now time.Time) {
	b.lock.Lock()
	defer b.lock.Unlock()
	p := &b.portfolio
	b.roll(now)
	p.DailyPnL += pnl
	p.WeeklyPnL += pnl
	p.LastClose = now
	if pnl < 0 {
		p.ConsecLosses++
	} else {
		p.ConsecLosses = 0
	}
	log.Info().
		Str("coin", string(coin)).
		Float64("pnl", pnl).
		Int("consecutive-losses", p.ConsecLosses).
		Msg("recorded close")
	b.save()
}

// Band returns the current risk band.
func (b *Book) Band() Band {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.band
}

// Multiplier returns the current band size multiplier.
func (b *Book) Multiplier() float64 {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.band.Multiplier()
}

// Emergency reports whether the emergency stop is set.
func (b *Book) Emergency() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.band == Emergency
}

// EmergencyReset clears the emergency stop. This is the explicit external
// reset the sticky state requires, it never happens on its own.
func (b *Book) EmergencyReset() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.band != Emergency {
		return
	}
	log.Warn().Str("reason", b.portfolio.EmergencyReason).Msg("emergency stop reset")
	b.portfolio.Emergency = false
	b.portfolio.EmergencyReason = ""
	b.portfolio.DrawdownLow = 0
	b.band = bandFor(b.portfolio.Drawdown())
	b.save()
}

// Portfolio returns a copy of the portfolio aggregate.
func (b *Book) Portfolio() model.Portfolio {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.portfolio
}
