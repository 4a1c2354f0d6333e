package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/infra/config"
	"github.com/velatrade/vela/internal/audit"
	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/storage"
)

// Ledger owns the set of open positions and their lifecycle state machines.
// At most one position per coin. All access goes through the lock, position
// transitions are atomic with respect to each other.
type Ledger struct {
	positions map[model.Coin]*model.Position
	cfg       config.Risk
	store     storage.Persistence
	publisher audit.Publisher
	lock      *sync.RWMutex
}

type state struct {
	Positions map[string]model.Position `json:"positions"`
}

func New(cfg config.Risk, store storage.Persistence, publisher audit.Publisher) (*Ledger, error) {
	l := &Ledger{
		positions: make(map[model.Coin]*model.Position),
		cfg:       cfg,
		store:     store,
		publisher: publisher,
		lock:      new(sync.RWMutex),
	}
	return l, l.load()
}

func stKey() storage.Key {
	return storage.Key{
		Pair:  "all",
		Label: "ledger",
	}
}

func (l *Ledger) save() error {
	st := state{Positions: make(map[string]model.Position, len(l.positions))}
	for coin, p := range l.positions {
		st.Positions[string(coin)] = *p
	}
	return l.store.Store(stKey(), st)
}

func (l *Ledger) load() error {
	st := state{Positions: make(map[string]model.Position)}
	err := l.store.Load(stKey(), &st)
	if err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("could not load ledger state: %w", err)
	}
	for coin, p := range st.Positions {
		position := p
		l.positions[model.Coin(coin)] = &position
	}
	log.Info().Int("positions", len(l.positions)).Msg("loaded ledger state")
	return nil
}

// Get returns a copy of the position for the coin.
func (l *Ledger) Get(coin model.Coin) (model.Position, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	if p, ok := l.positions[coin]; ok {
		return *p, true
	}
	return model.Position{}, false
}

// All returns copies of all open positions, ordered by coin.
func (l *Ledger) All() []model.Position {
	l.lock.RLock()
	defer l.lock.RUnlock()
	out := make([]model.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Coin < out[j].Coin
	})
	return out
}

// Count returns the number of open positions.
func (l *Ledger) Count() int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return len(l.positions)
}

// Notional sums the open value of all positions at their last seen prices.
func (l *Ledger) Notional() float64 {
	l.lock.RLock()
	defer l.lock.RUnlock()
	sum := 0.0
	for _, p := range l.positions {
		sum += p.Notional(p.CurrentPrice)
	}
	return sum
}

// UnrealisedPnL sums the unrealised pnl of all positions.
func (l *Ledger) UnrealisedPnL() float64 {
	l.lock.RLock()
	defer l.lock.RUnlock()
	sum := 0.0
	for _, p := range l.positions {
		sum += p.UnrealisedPnL
	}
	return sum
}

// Summary builds the reduced view of the open positions for the oracle.
func (l *Ledger) Summary() []model.PositionSummary {
	l.lock.RLock()
	defer l.lock.RUnlock()
	out := make([]model.PositionSummary, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, model.PositionSummary{
			Coin: p.Coin,
			Side: p.Side,
			PnL:  p.UnrealisedPnL,
			R:    p.R(p.CurrentPrice),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Coin < out[j].Coin
	})
	return out
}

// Open creates a position from the entry fill. One position per coin.
func (l *Ledger) Open(fill model.Fill, side model.Side, entry model.Entry, leverage float64) (model.Position, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if p, ok := l.positions[fill.Coin]; ok {
		return *p, fmt.Errorf("position already exists for %s", fill.Coin)
	}
	position := model.OpenPosition(fill, side, entry, leverage)
	if err := position.CheckInvariant(); err != nil {
		return model.Position{}, err
	}
	l.positions[fill.Coin] = &position
	l.transition(&position)
	if err := l.save(); err != nil {
		log.Error().Err(err).Str("coin", string(fill.Coin)).Msg("could not persist ledger")
	}
	log.Info().
		Str("coin", string(fill.Coin)).
		Str("side", side.String()).
		Float64("size", fill.Volume).
		Float64("entry", fill.Price).
		Float64("stop", entry.Invalidation).
		Msg("opened position")
	return position, nil
}

// ScaleIn extends a winning position with the given fill.
// Adding to a losing position is refused, never average down.
func (l *Ledger) ScaleIn(fill model.Fill) (model.Position, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	p, ok := l.positions[fill.Coin]
	if !ok {
		return model.Position{}, fmt.Errorf("no position to extend for %s", fill.Coin)
	}
	if !p.State.CanScaleIn() {
		return *p, fmt.Errorf("cannot scale in from state %s", p.State)
	}
	if r := p.R(fill.Price); r < l.cfg.ScaleInMinR {
		return *p, fmt.Errorf("scale in refused at %.2fR, want >= %.2fR", r, l.cfg.ScaleInMinR)
	}

	// average the entry, the risk anchor (initial stop) stays put
	next := *p
	total := next.Size + fill.Volume
	next.EntryPrice = (next.EntryPrice*next.Size + fill.Price*fill.Volume) / total
	next.Size = total
	if err := next.CheckInvariant(); err != nil {
		return *p, err
	}
	*p = next
	l.transition(p)
	if err := l.save(); err != nil {
		log.Error().Err(err).Str("coin", string(fill.Coin)).Msg("could not persist ledger")
	}
	log.Info().
		Str("coin", string(fill.Coin)).
		Float64("added", fill.Volume).
		Float64("size", p.Size).
		Float64("entry", p.EntryPrice).
		Msg("extended position")
	return *p, nil
}

// Close force closes the remainder of a position at the fill price,
// used for manual and emergency closes.
func (l *Ledger) Close(fill model.Fill) (float64, error) {
	return l.settle(fill, model.Closed)
}

// remove drops a fully closed position. Called under the lock.
func (l *Ledger) remove(coin model.Coin) {
	delete(l.positions, coin)
	if err := l.save(); err != nil {
		log.Error().Err(err).Str("coin", string(coin)).Msg("could not persist ledger")
	}
}

// transition emits the audit snapshot for the position. Called under the lock.
func (l *Ledger) transition(p *model.Position) {
	snapshot := *p
	event := audit.New(audit.TypeTransition, p.Coin, p.CurrentTime)
	event.Position = &snapshot
	event.Reason = p.State.String()
	l.publisher.Publish(event)
}
