package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
)

func newTestStorage(t *testing.T, config *common.BadgerConfig) *CacheStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, config)
	require.NoError(t, err)
	storage := NewCacheStorage(db, logger)
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestCacheStorage_InMemoryRoundTrip(t *testing.T) {
	storage := newTestStorage(t, &common.BadgerConfig{InMemory: true})
	ctx := context.Background()

	_, err := storage.Get(ctx, "product:B000TEST01")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	blob := []byte(`{"sid":"A1B2","sn":"Acme Traders","ts":1700000000000}`)
	require.NoError(t, storage.Put(ctx, "product:B000TEST01", blob))

	got, err := storage.Get(ctx, "product:B000TEST01")
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	// Last write wins
	updated := []byte(`{"sn":"Amazon","ts":1700000000001}`)
	require.NoError(t, storage.Put(ctx, "product:B000TEST01", updated))
	got, err = storage.Get(ctx, "product:B000TEST01")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestCacheStorage_KeysAreCaseSensitive(t *testing.T) {
	storage := newTestStorage(t, &common.BadgerConfig{InMemory: true})
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "seller:A1B2", []byte(`{"c":"CN"}`)))

	_, err := storage.Get(ctx, "seller:a1b2")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "seller ids are case-sensitive")
}

func TestCacheStorage_Count(t *testing.T) {
	storage := newTestStorage(t, &common.BadgerConfig{InMemory: true})
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, "product:A", []byte(`{}`)))
	require.NoError(t, storage.Put(ctx, "product:B", []byte(`{}`)))
	require.NoError(t, storage.Put(ctx, "seller:S", []byte(`{}`)))

	products, err := storage.Count(ctx, "product:")
	require.NoError(t, err)
	assert.Equal(t, 2, products)

	sellers, err := storage.Count(ctx, "seller:")
	require.NoError(t, err)
	assert.Equal(t, 1, sellers)
}

func TestCacheStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	logger := arbor.NewLogger()
	ctx := context.Background()

	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	storage := NewCacheStorage(db, logger)
	require.NoError(t, storage.Put(ctx, "seller:A1B2", []byte(`{"c":"DE"}`)))
	require.NoError(t, storage.Close())

	db, err = NewBadgerDB(logger, &common.BadgerConfig{Path: path})
	require.NoError(t, err)
	storage = NewCacheStorage(db, logger)
	defer storage.Close()

	got, err := storage.Get(ctx, "seller:A1B2")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"c":"DE"}`), got)
}

func TestNewBadgerDB_RequiresPath(t *testing.T) {
	_, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{})
	assert.Error(t, err)
}
