package interfaces

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key is not found in the cache store
var ErrKeyNotFound = errors.New("key not found")

// CacheStore is process-wide key/value persistence for JSON blobs.
// Expiry is not handled here; callers compute it from the blob's timestamp.
type CacheStore interface {
	// Get returns the blob for key or ErrKeyNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores blob under key, last write wins
	Put(ctx context.Context, key string, blob []byte) error

	// Close releases the underlying storage
	Close() error
}
