package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestLocalStorage(t *testing.T) {
	store := NewLocalStorage()
	k := Key{Pair: "BTC", Label: "ledger"}

	var missing payload
	err := store.Load(k, &missing)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	require.NoError(t, store.Store(k, payload{Name: "pos", Value: 42.5}))

	var loaded payload
	require.NoError(t, store.Load(k, &loaded))
	assert.Equal(t, payload{Name: "pos", Value: 42.5}, loaded)

	// overwrite replaces
	require.NoError(t, store.Store(k, payload{Name: "pos", Value: 10}))
	require.NoError(t, store.Load(k, &loaded))
	assert.Equal(t, 10.0, loaded.Value)

	// keys do not collide
	other := Key{Pair: "ETH", Label: "ledger"}
	err = store.Load(other, &loaded)
	assert.True(t, IsNotFound(err))
}

func TestVoidStorage(t *testing.T) {
	store := NewVoidStorage()
	k := Key{Pair: "all", Label: "book"}
	assert.NoError(t, store.Store(k, payload{Name: "x"}))

	var v payload
	err := store.Load(k, &v)
	assert.True(t, IsNotFound(err))
}

func TestKey_Path(t *testing.T) {
	k := Key{Hash: 3, Pair: "BTC", Label: "ledger"}
	assert.Equal(t, "BTC_3_ledger", k.Path())
}
