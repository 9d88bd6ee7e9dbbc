// Package memory provides a process-local cache store for tests and
// short-lived runs where nothing should touch disk.
package memory

import (
	"context"
	"sync"

	"github.com/ternarybob/soldby/internal/interfaces"
)

// CacheStorage implements interfaces.CacheStore on a sync.Map
type CacheStorage struct {
	entries sync.Map
}

// NewCacheStorage creates an empty store
func NewCacheStorage() *CacheStorage {
	return &CacheStorage{}
}

var _ interfaces.CacheStore = (*CacheStorage)(nil)

func (s *CacheStorage) Get(ctx context.Context, key string) ([]byte, error) {
	value, ok := s.entries.Load(key)
	if !ok {
		return nil, interfaces.ErrKeyNotFound
	}
	blob := value.([]byte)
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (s *CacheStorage) Put(ctx context.Context, key string, blob []byte) error {
	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.entries.Store(key, stored)
	return nil
}

func (s *CacheStorage) Close() error {
	return nil
}
