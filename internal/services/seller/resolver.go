// Package seller resolves a third-party seller to its country and rating.
package seller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/cache"
)

var (
	// ErrBlocked is returned when the storefront rate-limits seller pages (HTTP 503)
	ErrBlocked = errors.New("too many requests. Amazon blocked seller page. Please try again in a few minutes")

	// ErrNotThirdParty is returned for sellers that have no profile to look up
	ErrNotThirdParty = errors.New("seller has no third-party profile")
)

// StatusError is a non-2xx, non-503 seller page response
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("seller page %s returned status %d", e.URL, e.StatusCode)
}

// Resolver implements interfaces.SellerResolver with a cache-first lookup
type Resolver struct {
	cache   *cache.Service
	fetcher interfaces.Fetcher
	baseURL string
	logger  arbor.ILogger
}

var _ interfaces.SellerResolver = (*Resolver)(nil)

// NewResolver creates a seller resolver for the storefront at baseURL
func NewResolver(cacheService *cache.Service, fetcher interfaces.Fetcher, baseURL string, logger arbor.ILogger) *Resolver {
	return &Resolver{
		cache:   cacheService,
		fetcher: fetcher,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Resolve returns the profile of a third-party seller. locale selects the
// rating format. Blocked lookups return ErrBlocked and are never cached.
func (r *Resolver) Resolve(ctx context.Context, seller models.Seller, locale string) (models.SellerProfile, error) {
	if !seller.NeedsProfile() {
		return models.SellerProfile{}, ErrNotThirdParty
	}

	entry, fresh, err := r.cache.GetSeller(ctx, seller.ID)
	switch {
	case err == nil:
		if !fresh {
			r.cache.Refresh(models.SellerKey(seller.ID), entry.StoredAt, func(ctx context.Context) {
				if _, err := r.fetchAndStore(ctx, seller, locale); err != nil {
					r.logger.Warn().Err(err).Str("seller_id", seller.ID).Msg("Background seller refresh failed")
				}
			})
		}
		return entry.Profile(), nil
	case !errors.Is(err, interfaces.ErrKeyNotFound):
		r.logger.Warn().Err(err).Str("seller_id", seller.ID).Msg("Seller cache read failed, fetching page")
	}

	return r.fetchAndStore(ctx, seller, locale)
}

func (r *Resolver) fetchAndStore(ctx context.Context, seller models.Seller, locale string) (models.SellerProfile, error) {
	url := models.SellerProfileURL(r.baseURL, seller.ID)

	resp, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return models.SellerProfile{}, fmt.Errorf("fetching seller %s: %w", seller.ID, err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		r.logger.Warn().Str("seller", seller.Name).Str("url", url).Msg(ErrBlocked.Error())
		return models.SellerProfile{}, ErrBlocked
	case !resp.OK():
		return models.SellerProfile{}, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return models.SellerProfile{}, fmt.Errorf("parsing seller page %s: %w", seller.ID, err)
	}

	profile := ParseSellerPage(doc, locale)

	r.logger.Debug().
		Str("seller_id", seller.ID).
		Str("country", profile.Country).
		Str("rating_score", profile.Rating.Score).
		Str("rating_count", profile.Rating.Count).
		Bool("rating_hidden", profile.Rating.Hidden).
		Msg("Parsed seller page")

	if err := r.cache.PutSeller(ctx, seller.ID, profile); err != nil {
		r.logger.Warn().Err(err).Str("seller_id", seller.ID).Msg("Failed to cache seller profile")
	}

	return profile, nil
}
