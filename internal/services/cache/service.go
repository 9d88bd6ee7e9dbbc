// Package cache applies the soft-expiry policy over the cache store.
// Stale entries are still returned; the caller decides whether to refresh.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
)

// Default max ages for the two cache classes
const (
	DefaultProductTTL = 24 * time.Hour
	DefaultSellerTTL  = 7 * 24 * time.Hour
)

// Service provides TTL-aware access to product and seller entries.
type Service struct {
	store      interfaces.CacheStore
	logger     arbor.ILogger
	productTTL time.Duration
	sellerTTL  time.Duration
	now        func() time.Time

	refreshes sync.WaitGroup
	ctx       context.Context
}

// Option configures the Service
type Option func(*Service)

// WithTTLs overrides the default max ages. Non-positive values keep the default.
func WithTTLs(productTTL, sellerTTL time.Duration) Option {
	return func(s *Service) {
		if productTTL > 0 {
			s.productTTL = productTTL
		}
		if sellerTTL > 0 {
			s.sellerTTL = sellerTTL
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithContext sets the context background refreshes run under
func WithContext(ctx context.Context) Option {
	return func(s *Service) {
		s.ctx = ctx
	}
}

// NewService creates a new cache service.
func NewService(store interfaces.CacheStore, logger arbor.ILogger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     logger,
		productTTL: DefaultProductTTL,
		sellerTTL:  DefaultSellerTTL,
		now:        time.Now,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock
func (s *Service) Now() time.Time {
	return s.now()
}

// GetProduct reads a product entry. fresh is false once the entry is older
// than the product TTL. A missing entry returns interfaces.ErrKeyNotFound.
func (s *Service) GetProduct(ctx context.Context, asin string) (*models.ProductEntry, bool, error) {
	var entry models.ProductEntry
	if err := s.read(ctx, models.ProductKey(asin), &entry); err != nil {
		return nil, false, err
	}
	return &entry, s.isFresh(entry.StoredAt, s.productTTL), nil
}

// GetSeller reads a seller entry. fresh is false once the entry is older
// than the seller TTL. A missing entry returns interfaces.ErrKeyNotFound.
func (s *Service) GetSeller(ctx context.Context, sellerID string) (*models.SellerEntry, bool, error) {
	var entry models.SellerEntry
	if err := s.read(ctx, models.SellerKey(sellerID), &entry); err != nil {
		return nil, false, err
	}
	return &entry, s.isFresh(entry.StoredAt, s.sellerTTL), nil
}

// PutProduct stores the product outcome. Unknown sellers are skipped.
func (s *Service) PutProduct(ctx context.Context, asin string, seller models.Seller) error {
	entry, ok := models.NewProductEntry(seller, s.now())
	if !ok {
		return nil
	}
	return s.write(ctx, models.ProductKey(asin), entry)
}

// PutSeller stores a parsed seller profile
func (s *Service) PutSeller(ctx context.Context, sellerID string, profile models.SellerProfile) error {
	return s.write(ctx, models.SellerKey(sellerID), models.NewSellerEntry(profile, s.now()))
}

// Refresh runs fn in the background to repopulate key. Nothing marks the key
// as refreshing, so a second stale read before fn completes refreshes again.
func (s *Service) Refresh(key string, storedAt models.Millis, fn func(ctx context.Context)) {
	s.logger.Info().
		Str("key", key).
		Str("age", models.ReadableAge(models.Age(storedAt, s.now()))).
		Msg("Re-fetching stale cache entry")

	common.SafeGo(&s.refreshes, s.logger, "cache-refresh:"+key, func() {
		fn(s.ctx)
	}, nil)
}

// Wait blocks until all background refreshes have completed
func (s *Service) Wait() {
	s.refreshes.Wait()
}

func (s *Service) isFresh(storedAt models.Millis, ttl time.Duration) bool {
	return models.Age(storedAt, s.now()) <= ttl
}

func (s *Service) read(ctx context.Context, key string, out interface{}) error {
	blob, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(blob, out); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Discarding unreadable cache entry")
		return interfaces.ErrKeyNotFound
	}
	return nil
}

func (s *Service) write(ctx context.Context, key string, entry interface{}) error {
	blob, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	if err := s.store.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	return nil
}
