package json

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velatrade/vela/internal/storage"
)

type record struct {
	Coin string  `json:"coin"`
	PnL  float64 `json:"pnl"`
}

func TestBlob_RoundTrip(t *testing.T) {
	blob := NewBlob(filepath.Join(t.TempDir(), storage.LedgerDir))
	k := storage.Key{Pair: "all", Label: "ledger"}

	var missing record
	err := blob.Load(k, &missing)
	require.Error(t, err)
	assert.True(t, storage.IsNotFound(err))

	require.NoError(t, blob.Store(k, record{Coin: "BTC", PnL: 120.5}))

	var loaded record
	require.NoError(t, blob.Load(k, &loaded))
	assert.Equal(t, record{Coin: "BTC", PnL: 120.5}, loaded)

	// a second writer against the same directory sees the value,
	// that is the crash recovery path
	reopened := NewBlob(blob.dir)
	require.NoError(t, reopened.Load(k, &loaded))
	assert.Equal(t, 120.5, loaded.PnL)
}

func TestBlob_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	blob := NewBlob(dir)
	k := storage.Key{Pair: "all", Label: "book"}
	require.NoError(t, os.WriteFile(filepath.Join(dir, k.Path()+".json"), []byte("not json"), 0o644))

	var v record
	err := blob.Load(k, &v)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.CouldNotLoadErr)
	assert.False(t, storage.IsNotFound(err))
}

func TestBlobShard(t *testing.T) {
	dir := t.TempDir()
	shard := BlobShard(dir)

	ledger, err := shard(storage.LedgerDir)
	require.NoError(t, err)
	book, err := shard(storage.BookDir)
	require.NoError(t, err)

	k := storage.Key{Pair: "all", Label: "state"}
	require.NoError(t, ledger.Store(k, record{Coin: "BTC"}))
	require.NoError(t, book.Store(k, record{Coin: "ETH"}))

	var fromLedger, fromBook record
	require.NoError(t, ledger.Load(k, &fromLedger))
	require.NoError(t, book.Load(k, &fromBook))
	assert.Equal(t, "BTC", fromLedger.Coin)
	assert.Equal(t, "ETH", fromBook.Coin)
}
