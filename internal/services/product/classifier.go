package product

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/soldby/internal/models"
)

// SpecialPageSelectors mark pages that are always sold by the first party:
// gift cards, balance reloads, digital subscriptions and streaming video
var SpecialPageSelectors = []string{
	"#gc-detail-page",
	".reload_gc_balance",
	"#dp.digitaltextfeeds, #dp.magazine, #dp.ebooks, #dp.audible",
	".av-page-desktop, .avu-retail-page",
}

// ThirdPartySellerSelectors locate the seller link in the buy box variants, in priority order
var ThirdPartySellerSelectors = []string{
	"#desktop_qualifiedBuyBox :not(#usedAccordionRow) #sellerProfileTriggerId",
	"#desktop_qualifiedBuyBox :not(#usedAccordionRow) #merchant-info a:first-of-type",
	"#exports_desktop_qualifiedBuybox :not(#usedAccordionRow) #sellerProfileTriggerId",
	"#exports_desktop_qualifiedBuybox :not(#usedAccordionRow) #merchant-info a:first-of-type",
	"#newAccordionRow #sellerProfileTriggerId",
	"#newAccordionRow #merchant-info a:first-of-type",
}

// PageMatcher is one classification rule. Matched reports whether the rule applied.
type PageMatcher interface {
	Name() string
	Classify(doc *goquery.Document) (seller models.Seller, matched bool)
}

// SpecialPageMatcher classifies first-party-only page types
type SpecialPageMatcher struct{}

func (SpecialPageMatcher) Name() string { return "special-page" }

func (SpecialPageMatcher) Classify(doc *goquery.Document) (models.Seller, bool) {
	if doc.Find(strings.Join(SpecialPageSelectors, ", ")).Length() > 0 {
		return models.FirstParty(), true
	}
	return models.Seller{}, false
}

// ThirdPartyMatcher finds a third-party seller link in the buy box
type ThirdPartyMatcher struct{}

func (ThirdPartyMatcher) Name() string { return "third-party" }

func (ThirdPartyMatcher) Classify(doc *goquery.Document) (models.Seller, bool) {
	for _, selector := range ThirdPartySellerSelectors {
		anchor := doc.Find(selector).First()
		if anchor.Length() == 0 {
			continue
		}

		href, _ := anchor.Attr("href")
		return models.ThirdParty(sellerIDFromHref(href), normalizeSellerName(anchor.Text())), true
	}
	return models.Seller{}, false
}

// MerchantInfoMatcher is the fallback: any merchant text means the first party,
// no text means the seller is unknown. It always matches.
type MerchantInfoMatcher struct{}

func (MerchantInfoMatcher) Name() string { return "merchant-info" }

func (MerchantInfoMatcher) Classify(doc *goquery.Document) (models.Seller, bool) {
	if strings.Join(strings.Fields(merchantInfoText(doc)), "") != "" {
		return models.FirstParty(), true
	}
	return models.UnknownSeller(), true
}

func merchantInfoText(doc *goquery.Document) string {
	if doc.Find("#tabular-buybox .tabular-buybox-text").Length() > 0 {
		return strings.TrimSpace(doc.Find("#tabular-buybox .tabular-buybox-container > .tabular-buybox-text:last-of-type").First().Text())
	}
	if sel := doc.Find("#merchant-info"); sel.Length() > 0 {
		return strings.TrimSpace(sel.First().Text())
	}
	if sel := doc.Find(`[offer-display-feature-name="desktop-merchant-info"]`); sel.Length() > 0 {
		return strings.TrimSpace(sel.First().Text())
	}
	return ""
}

// DefaultPageMatchers returns the classification rules in the order they are tried
func DefaultPageMatchers() []PageMatcher {
	return []PageMatcher{
		SpecialPageMatcher{},
		ThirdPartyMatcher{},
		MerchantInfoMatcher{},
	}
}

// ClassifyPage runs matchers in order and returns the first match
func ClassifyPage(doc *goquery.Document, matchers []PageMatcher) (models.Seller, string) {
	for _, matcher := range matchers {
		if seller, ok := matcher.Classify(doc); ok {
			return seller, matcher.Name()
		}
	}
	return models.UnknownSeller(), ""
}

// sellerIDFromHref reads the seller query parameter of a (possibly relative) link
func sellerIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("seller")
}

// normalizeSellerName trims the name and swaps straight double quotes for
// curly ones so names never break quoted storage formats
func normalizeSellerName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), `"`, "“")
}
