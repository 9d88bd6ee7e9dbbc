package product

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/cache"
	"github.com/ternarybob/soldby/internal/storage/memory"
)

const baseURL = "https://www.amazon.com"

var errOffline = errors.New("offline")

// fakeFetcher serves canned pages and counts requests per URL
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]*models.FetchResponse
	calls  map[string]int
	failed bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: make(map[string]*models.FetchResponse),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) serve(url string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = &models.FetchResponse{URL: url, StatusCode: status, Body: []byte(body)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*models.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if f.failed {
		return nil, errOffline
	}
	if resp, ok := f.pages[url]; ok {
		return resp, nil
	}
	return &models.FetchResponse{URL: url, StatusCode: 404}, nil
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestResolver(t *testing.T) (*Resolver, *fakeFetcher, *cache.Service, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	cacheService := cache.NewService(memory.NewCacheStorage(), arbor.NewLogger(), cache.WithClock(clk.Now))
	fetcher := newFakeFetcher()
	return NewResolver(cacheService, fetcher, baseURL, arbor.NewLogger()), fetcher, cacheService, clk
}

func productURL(asin string) string {
	return models.ProductPageURL(baseURL, asin)
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestClassifyPage(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		want     models.Seller
		wantRule string
	}{
		{
			name:     "gift card",
			html:     `<div id="gc-detail-page"><div id="merchant-info"></div></div>`,
			want:     models.FirstParty(),
			wantRule: "special-page",
		},
		{
			name:     "balance reload",
			html:     `<div class="reload_gc_balance"></div>`,
			want:     models.FirstParty(),
			wantRule: "special-page",
		},
		{
			name:     "ebook",
			html:     `<div id="dp" class="ebooks"></div>`,
			want:     models.FirstParty(),
			wantRule: "special-page",
		},
		{
			name:     "prime video",
			html:     `<div class="avu-retail-page"></div>`,
			want:     models.FirstParty(),
			wantRule: "special-page",
		},
		{
			name: "standard buy box",
			html: `<div id="desktop_qualifiedBuyBox"><div class="offer">
				<a id="sellerProfileTriggerId" href="/gp/help/seller/at-a-glance.html?ie=UTF8&seller=A1B2C3&isAmazonFulfilled=1"> Acme "Best" Traders </a>
			</div></div>`,
			want:     models.ThirdParty("A1B2C3", "Acme “Best“ Traders"),
			wantRule: "third-party",
		},
		{
			name: "export buy box merchant info",
			html: `<div id="exports_desktop_qualifiedBuybox"><div>
				<div id="merchant-info">Ships from and sold by <a href="/gp/aag/main?seller=EXP123&tab=1">Global Exports</a>.</div>
			</div></div>`,
			want:     models.ThirdParty("EXP123", "Global Exports"),
			wantRule: "third-party",
		},
		{
			name: "accordion",
			html: `<div id="newAccordionRow"><a id="sellerProfileTriggerId" href="https://www.amazon.com/sp?seller=ACC999">Accordion Shop</a></div>`,
			want:     models.ThirdParty("ACC999", "Accordion Shop"),
			wantRule: "third-party",
		},
		{
			name: "tabular buy box",
			html: `<div id="tabular-buybox"><div class="tabular-buybox-container">
				<span class="tabular-buybox-text">Ships from</span>
				<span class="tabular-buybox-text"> Amazon.com </span>
			</div></div>`,
			want:     models.FirstParty(),
			wantRule: "merchant-info",
		},
		{
			name:     "merchant info text",
			html:     `<div id="merchant-info">Ships from and sold by Amazon.com.</div>`,
			want:     models.FirstParty(),
			wantRule: "merchant-info",
		},
		{
			name:     "offer display merchant info",
			html:     `<div offer-display-feature-name="desktop-merchant-info"><span>Amazon</span></div>`,
			want:     models.FirstParty(),
			wantRule: "merchant-info",
		},
		{
			name:     "empty merchant info",
			html:     `<div id="merchant-info">   </div>`,
			want:     models.UnknownSeller(),
			wantRule: "merchant-info",
		},
		{
			name:     "nothing recognisable",
			html:     `<div id="captcha">Type the characters you see</div>`,
			want:     models.UnknownSeller(),
			wantRule: "merchant-info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seller, rule := ClassifyPage(doc(t, tt.html), DefaultPageMatchers())
			assert.Equal(t, tt.want, seller)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestResolver_GiftCardNeedsSingleFetch(t *testing.T) {
	resolver, fetcher, cacheService, _ := newTestResolver(t)
	ctx := context.Background()
	fetcher.serve(productURL("B0GIFT0000"), 200, `<html><body><div id="gc-detail-page"></div></body></html>`)

	res, err := resolver.Resolve(ctx, "B0GIFT0000")
	require.NoError(t, err)
	assert.Equal(t, models.FirstParty(), res.Seller)
	assert.False(t, res.FromCache)
	assert.Equal(t, 1, fetcher.total())

	entry, fresh, err := cacheService.GetProduct(ctx, "B0GIFT0000")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Empty(t, entry.SellerID, "first-party entries omit the seller id")
	assert.Equal(t, "Amazon", entry.SellerName)
}

func TestResolver_ThirdPartyIsCached(t *testing.T) {
	resolver, fetcher, _, _ := newTestResolver(t)
	ctx := context.Background()
	fetcher.serve(productURL("B0THIRD000"), 200,
		`<div id="desktop_qualifiedBuyBox"><div><a id="sellerProfileTriggerId" href="/sp?seller=A1B2">Acme Traders</a></div></div>`)

	res, err := resolver.Resolve(ctx, "B0THIRD000")
	require.NoError(t, err)
	assert.Equal(t, models.ThirdParty("A1B2", "Acme Traders"), res.Seller)

	res, err = resolver.Resolve(ctx, "B0THIRD000")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, models.ThirdParty("A1B2", "Acme Traders"), res.Seller)
	assert.Equal(t, 1, fetcher.total(), "second resolve is served from cache")
}

func TestResolver_UnknownIsNotCached(t *testing.T) {
	resolver, fetcher, cacheService, _ := newTestResolver(t)
	ctx := context.Background()
	fetcher.serve(productURL("B0UNKNOWN0"), 200, `<html><body>nothing</body></html>`)

	res, err := resolver.Resolve(ctx, "B0UNKNOWN0")
	require.NoError(t, err)
	assert.Equal(t, models.UnknownSeller(), res.Seller)

	_, _, err = cacheService.GetProduct(ctx, "B0UNKNOWN0")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestResolver_Failures(t *testing.T) {
	resolver, fetcher, cacheService, _ := newTestResolver(t)
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "B0MISSING0")
	assert.ErrorIs(t, err, ErrPageUnavailable)

	fetcher.failed = true
	_, err = resolver.Resolve(ctx, "B0OFFLINE0")
	assert.ErrorIs(t, err, errOffline)

	_, _, err = cacheService.GetProduct(ctx, "B0OFFLINE0")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "failures are never cached")
}

func TestResolver_StaleEntryRefreshesOnce(t *testing.T) {
	resolver, fetcher, cacheService, clk := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, cacheService.PutProduct(ctx, "B0STALE000", models.ThirdParty("OLD1", "Old Seller")))
	fetcher.serve(productURL("B0STALE000"), 200,
		`<div id="newAccordionRow"><a id="sellerProfileTriggerId" href="/sp?seller=NEW1">New Seller</a></div>`)

	// Fresh read: no refresh
	res, err := resolver.Resolve(ctx, "B0STALE000")
	require.NoError(t, err)
	assert.Equal(t, "Old Seller", res.Seller.Name)
	cacheService.Wait()
	assert.Equal(t, 0, fetcher.total())

	// Stale read: old value now, exactly one background refetch
	clk.now = clk.now.Add(25 * time.Hour)
	res, err = resolver.Resolve(ctx, "B0STALE000")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, "Old Seller", res.Seller.Name, "stale value is returned immediately")

	cacheService.Wait()
	assert.Equal(t, 1, fetcher.total())

	entry, fresh, err := cacheService.GetProduct(ctx, "B0STALE000")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "NEW1", entry.SellerID, "refresh overwrites the cache")
}
