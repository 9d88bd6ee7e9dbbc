package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/cache"
	"github.com/ternarybob/soldby/internal/services/product"
	"github.com/ternarybob/soldby/internal/services/seller"
	"github.com/ternarybob/soldby/internal/storage/memory"
)

const storefront = "https://www.amazon.com"

const acmeSellerPage = `<html><body>
<div id="seller-profile-container" class="spp-redesigned">
  <h1 id="seller-name">Acme Traders</h1>
  <div id="seller-info-feedback-summary">
    <span class="feedback-detail-description"><span class="a-icon-alt">4.5 out of 5 stars</span>91% positive over last 12 months (1,234 ratings)</span>
  </div>
  <div id="page-section-detail-seller-info"><div class="a-box-inner">
    <div class="a-row a-spacing-none indent-left">Shenzhen</div>
    <div class="a-row a-spacing-none indent-left">CN</div>
  </div></div>
</div></body></html>`

type pageFetcher struct {
	mu     sync.Mutex
	status map[string]int
	bodies map[string]string
	calls  map[string]int
}

func newPageFetcher() *pageFetcher {
	return &pageFetcher{status: map[string]int{}, bodies: map[string]string{}, calls: map[string]int{}}
}

func (f *pageFetcher) serve(url string, status int, body string) {
	f.status[url] = status
	f.bodies[url] = body
}

func (f *pageFetcher) Fetch(ctx context.Context, url string) (*models.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	status, ok := f.status[url]
	if !ok {
		status = 404
	}
	return &models.FetchResponse{URL: url, StatusCode: status, Body: []byte(f.bodies[url])}, nil
}

func (f *pageFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *pageFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type pipelineFixture struct {
	store   *memory.CacheStorage
	cache   *cache.Service
	fetcher *pageFetcher
	now     time.Time
}

func newPipelineFixture() *pipelineFixture {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewCacheStorage()
	return &pipelineFixture{
		store:   store,
		cache:   cache.NewService(store, arbor.NewLogger(), cache.WithClock(func() time.Time { return now })),
		fetcher: newPageFetcher(),
		now:     now,
	}
}

func (f *pipelineFixture) scheduler(t *testing.T, html string) (*Scheduler, *recordingSink) {
	logger := arbor.NewLogger()
	products := product.NewResolver(f.cache, f.fetcher, storefront, logger)
	sellers := seller.NewResolver(f.cache, f.fetcher, storefront, logger)
	return newTestScheduler(t, html, products, sellers, WithRefreshWaiter(f.cache.Wait))
}

func TestScenario_CachedProductResolvesSellerFromNetwork(t *testing.T) {
	f := newPipelineFixture()
	blob := fmt.Sprintf(`{"sn":"Acme Traders","sid":"A1B2","ts":%d}`, f.now.Add(-time.Hour).UnixMilli())
	require.NoError(t, f.store.Put(context.Background(), models.ProductKey("B0ACME0001"), []byte(blob)))
	f.fetcher.serve(models.SellerProfileURL(storefront, "A1B2"), 200, acmeSellerPage)

	s, sink := f.scheduler(t, `<html lang="en-us"><body><div data-asin="B0ACME0001"></div></body></html>`)
	runUntilIdle(t, s, nil, nil)

	result := sink.byASIN()["B0ACME0001"]
	assert.Equal(t, models.StateResolved, result.State)
	assert.Equal(t, "Acme Traders", result.Seller.DisplayName())
	require.NotNil(t, result.Profile)
	assert.Equal(t, "CN", result.Profile.Country)
	assert.Equal(t, models.Rating{Score: "91%", Count: "1234"}, result.Profile.Rating)
	assert.True(t, result.Highlight)

	assert.Equal(t, 0, f.fetcher.count(models.ProductPageURL(storefront, "B0ACME0001")), "fresh product entry avoids the product page")
	assert.Equal(t, 1, f.fetcher.count(models.SellerProfileURL(storefront, "A1B2")))

	_, err := f.store.Get(context.Background(), models.SellerKey("A1B2"))
	assert.NoError(t, err, "resolved seller is cached")
}

func TestScenario_BlockedSellerIsNotCached(t *testing.T) {
	f := newPipelineFixture()
	blob := fmt.Sprintf(`{"sn":"Acme Traders","sid":"A1B2","ts":%d}`, f.now.UnixMilli())
	require.NoError(t, f.store.Put(context.Background(), models.ProductKey("B0ACME0001"), []byte(blob)))
	f.fetcher.serve(models.SellerProfileURL(storefront, "A1B2"), 503, "")

	s, sink := f.scheduler(t, `<html><body><div data-asin="B0ACME0001"></div></body></html>`)
	runUntilIdle(t, s, nil, nil)

	result := sink.byASIN()["B0ACME0001"]
	assert.Equal(t, models.StateBlocked, result.State)
	assert.Equal(t, models.BlockedMessage, result.Message)

	_, err := f.store.Get(context.Background(), models.SellerKey("A1B2"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestScenario_GiftCardIsFirstParty(t *testing.T) {
	f := newPipelineFixture()
	f.fetcher.serve(models.ProductPageURL(storefront, "B0GIFT0001"), 200, `<html><body><div id="gc-detail-page"></div></body></html>`)

	s, sink := f.scheduler(t, `<html><body><div data-asin="B0GIFT0001"></div></body></html>`)
	runUntilIdle(t, s, nil, nil)

	result := sink.byASIN()["B0GIFT0001"]
	assert.Equal(t, models.StateResolved, result.State)
	assert.Equal(t, models.SellerFirstParty, result.Seller.Kind)
	assert.False(t, result.Highlight)
	assert.Equal(t, 1, f.fetcher.total(), "only the product page is fetched")
}

func TestScenario_StaleEntryRefreshesOnce(t *testing.T) {
	f := newPipelineFixture()
	blob := fmt.Sprintf(`{"sn":"Amazon","ts":%d}`, f.now.Add(-48*time.Hour).UnixMilli())
	require.NoError(t, f.store.Put(context.Background(), models.ProductKey("B0STALE001"), []byte(blob)))
	f.fetcher.serve(models.ProductPageURL(storefront, "B0STALE001"), 200, `<html><body><div id="merchant-info">Ships from and sold by Amazon.com</div></body></html>`)

	s, sink := f.scheduler(t, `<html><body><div data-asin="B0STALE001"></div></body></html>`)
	runUntilIdle(t, s, nil, nil)

	assert.Equal(t, models.StateResolved, sink.byASIN()["B0STALE001"].State)
	assert.Equal(t, 1, f.fetcher.count(models.ProductPageURL(storefront, "B0STALE001")), "stale entry is used and refreshed in the background")

	entry, fresh, err := f.cache.GetProduct(context.Background(), "B0STALE001")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, models.NewMillis(f.now), entry.StoredAt)
}
