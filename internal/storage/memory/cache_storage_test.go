package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/soldby/internal/interfaces"
)

func TestCacheStorage_RoundTrip(t *testing.T) {
	storage := NewCacheStorage()
	ctx := context.Background()

	_, err := storage.Get(ctx, "seller:A1B2")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	blob := []byte(`{"c":"CN","rs":"91%","rc":"1234","ts":1}`)
	require.NoError(t, storage.Put(ctx, "seller:A1B2", blob))

	// Mutating the caller's slice must not leak into the store
	blob[0] = 'X'

	got, err := storage.Get(ctx, "seller:A1B2")
	require.NoError(t, err)
	assert.Equal(t, `{"c":"CN","rs":"91%","rc":"1234","ts":1}`, string(got))
	assert.NoError(t, storage.Close())
}
