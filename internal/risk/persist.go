package risk

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velatrade/vela/internal/model"
	"github.com/velatrade/vela/internal/storage"
)

// bookState is the persisted book snapshot. The emergency stop and the loss
// counters must survive a process restart, a crash is not a reset.
type bookState struct {
	Portfolio model.Portfolio      `json:"portfolio"`
	Band      Band                 `json:"band"`
	LastEntry map[string]time.Time `json:"last_entry"`
}

func bookKey() storage.Key {
	return storage.Key{
		Pair:  "all",
		Label: "book",
	}
}

// Attach wires the book to persistent storage and restores any saved state.
func (b *Book) Attach(store storage.Persistence) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.store = store

	var st bookState
	err := store.Load(bookKey(), &st)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil
		}
		return err
	}

	b.portfolio = st.Portfolio
	b.band = st.Band
	for coin, at := range st.LastEntry {
		b.lastEntry[model.Coin(coin)] = at
	}
	log.Info().
		Str("band", b.band.String()).
		Float64("peak", b.portfolio.Peak).
		Bool("emergency", b.portfolio.Emergency).
		Msg("restored book state")
	return nil
}

// save persists the book snapshot. Called under the lock.
func (b *Book) save() {
	if b.store == nil {
		return
	}
	st := bookState{
		Portfolio: b.portfolio,
		Band:      b.band,
		LastEntry: make(map[string]time.Time, len(b.lastEntry)),
	}
	for coin, at := range b.lastEntry {
		st.LastEntry[string(coin)] = at
	}
	if err := b.store.Store(bookKey(), st); err != nil {
		log.Error().Err(err).Msg("could not persist book")
	}
}
