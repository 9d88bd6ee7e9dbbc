package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/storage/badger"
	"github.com/ternarybob/soldby/internal/storage/memory"
)

// NewCacheStore creates the cache store selected by config
func NewCacheStore(logger arbor.ILogger, config *common.StorageConfig) (interfaces.CacheStore, error) {
	switch config.Type {
	case "badger", "":
		db, err := badger.NewBadgerDB(logger, &config.Badger)
		if err != nil {
			return nil, err
		}
		store := badger.NewCacheStorage(db, logger)

		event := logger.Info().
			Str("path", config.Badger.Path).
			Bool("in_memory", config.Badger.InMemory)
		ctx := context.Background()
		if products, err := store.Count(ctx, models.ProductKeyPrefix); err == nil {
			event = event.Int("products", products)
		}
		if sellers, err := store.Count(ctx, models.SellerKeyPrefix); err == nil {
			event = event.Int("sellers", sellers)
		}
		event.Msg("Badger cache store initialized")
		return store, nil
	case "memory":
		logger.Info().Msg("Memory cache store initialized")
		return memory.NewCacheStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'badger' or 'memory')", config.Type)
	}
}
