// Package product resolves a product identifier to the seller fulfilling it.
package product

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/cache"
)

// ErrPageUnavailable is returned when the product page answers with a non-2xx status
var ErrPageUnavailable = errors.New("product page unavailable")

// Resolver implements interfaces.ProductResolver with a cache-first lookup
type Resolver struct {
	cache    *cache.Service
	fetcher  interfaces.Fetcher
	baseURL  string
	matchers []PageMatcher
	logger   arbor.ILogger
}

var _ interfaces.ProductResolver = (*Resolver)(nil)

// NewResolver creates a product resolver for the storefront at baseURL
func NewResolver(cacheService *cache.Service, fetcher interfaces.Fetcher, baseURL string, logger arbor.ILogger) *Resolver {
	return &Resolver{
		cache:    cacheService,
		fetcher:  fetcher,
		baseURL:  baseURL,
		matchers: DefaultPageMatchers(),
		logger:   logger,
	}
}

// Resolve returns the seller for asin. A cached entry is used as-is even when
// stale; a stale entry additionally schedules a background refetch.
func (r *Resolver) Resolve(ctx context.Context, asin string) (models.ProductResolution, error) {
	entry, fresh, err := r.cache.GetProduct(ctx, asin)
	switch {
	case err == nil:
		if !fresh {
			r.cache.Refresh(models.ProductKey(asin), entry.StoredAt, func(ctx context.Context) {
				if _, err := r.fetchAndStore(ctx, asin); err != nil {
					r.logger.Warn().Err(err).Str("asin", asin).Msg("Background product refresh failed")
				}
			})
		}
		return models.ProductResolution{Seller: entry.Seller(), FromCache: true}, nil
	case !errors.Is(err, interfaces.ErrKeyNotFound):
		r.logger.Warn().Err(err).Str("asin", asin).Msg("Product cache read failed, fetching page")
	}

	seller, err := r.fetchAndStore(ctx, asin)
	if err != nil {
		return models.ProductResolution{}, err
	}
	return models.ProductResolution{Seller: seller}, nil
}

func (r *Resolver) fetchAndStore(ctx context.Context, asin string) (models.Seller, error) {
	url := models.ProductPageURL(r.baseURL, asin)

	resp, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return models.Seller{}, fmt.Errorf("fetching product %s: %w", asin, err)
	}
	if !resp.OK() {
		return models.Seller{}, fmt.Errorf("%w: %s returned status %d", ErrPageUnavailable, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return models.Seller{}, fmt.Errorf("parsing product page %s: %w", asin, err)
	}

	seller, rule := ClassifyPage(doc, r.matchers)

	r.logger.Debug().
		Str("asin", asin).
		Str("rule", rule).
		Str("seller_kind", string(seller.Kind)).
		Str("seller", seller.DisplayName()).
		Msg("Classified product page")

	if err := r.cache.PutProduct(ctx, asin, seller); err != nil {
		r.logger.Warn().Err(err).Str("asin", asin).Msg("Failed to cache product seller")
	}

	return seller, nil
}
