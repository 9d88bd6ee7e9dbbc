package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/timshannon/badgerhold/v4"
)

// CacheRecord is the persisted form of one cache entry
type CacheRecord struct {
	Key       string `badgerhold:"key"`
	Blob      []byte
	UpdatedAt time.Time
}

// CacheStorage implements interfaces.CacheStore on Badger
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) *CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

var _ interfaces.CacheStore = (*CacheStorage)(nil)

func (s *CacheStorage) normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// Get retrieves a blob by key
func (s *CacheStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var record CacheRecord
	err := s.db.Store().Get(s.normalizeKey(key), &record)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return record.Blob, nil
}

// Put inserts or replaces a blob
func (s *CacheStorage) Put(ctx context.Context, key string, blob []byte) error {
	normalizedKey := s.normalizeKey(key)
	record := CacheRecord{
		Key:       normalizedKey,
		Blob:      blob,
		UpdatedAt: time.Now(),
	}

	if err := s.db.Store().Upsert(normalizedKey, &record); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

// Count returns the number of stored entries whose key has the given prefix
func (s *CacheStorage) Count(ctx context.Context, prefix string) (int, error) {
	var records []CacheRecord
	if err := s.db.Store().Find(&records, nil); err != nil {
		return 0, fmt.Errorf("failed to list cache records: %w", err)
	}

	count := 0
	for _, record := range records {
		if strings.HasPrefix(record.Key, prefix) {
			count++
		}
	}
	return count, nil
}

// Close closes the underlying database
func (s *CacheStorage) Close() error {
	return s.db.Close()
}
