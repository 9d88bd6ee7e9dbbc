// Package extractor tags listing containers with the product identifier
// found in their representative link.
package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

// AttrIdentifier is the attribute carrying the extracted product identifier
const AttrIdentifier = "data-asin"

// ContainerSelectors match listing layouts that do not carry data-asin natively
var ContainerSelectors = []string{
	".a-carousel-card > div:not([data-asin])",
	".octopus-pc-item:not([data-asin])",
	"li[class*=ProductGridItem__]:not([data-asin])",
	"div[class*=_octopus-search-result-card_style_apbSearchResultItem]:not([data-asin])",
	".sbv-product:not([data-asin])",
	".a-cardui #gridItemRoot:not([data-asin])",
}

// Extractor applies matchers in declared order
type Extractor struct {
	matchers []Matcher
	logger   arbor.ILogger
}

// NewExtractor creates an extractor. With no matchers the defaults are used.
func NewExtractor(logger arbor.ILogger, matchers ...Matcher) *Extractor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Extractor{
		matchers: matchers,
		logger:   logger,
	}
}

// RepresentativeAnchor returns the first link of a container, skipping
// bestseller badge links and popover triggers
func RepresentativeAnchor(container *goquery.Selection) *goquery.Selection {
	var anchor *goquery.Selection
	container.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if a.HasClass("a-popover-trigger") {
			return true
		}
		if a.Parent().HasClass("s-grid-status-badge-container") {
			return true
		}
		anchor = a
		return false
	})
	return anchor
}

// ExtractFromHref decodes href and runs the matchers over it
func (e *Extractor) ExtractFromHref(href string) (string, bool) {
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}

	for _, matcher := range e.matchers {
		if id, ok := matcher.Match(href); ok {
			return id, true
		}
	}
	return "", false
}

// ExtractIdentifier recovers the product identifier of a container
func (e *Extractor) ExtractIdentifier(container *goquery.Selection) (string, bool) {
	anchor := RepresentativeAnchor(container)
	if anchor == nil {
		return "", false
	}

	href, exists := anchor.Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return "", false
	}

	return e.ExtractFromHref(href)
}

// TagContainers sets data-asin on every candidate container whose identifier
// can be extracted. Failed containers stay untagged so a later scan retries them.
func (e *Extractor) TagContainers(root *goquery.Selection) int {
	tagged := 0
	root.Find(strings.Join(ContainerSelectors, ", ")).Each(func(_ int, container *goquery.Selection) {
		id, ok := e.ExtractIdentifier(container)
		if !ok {
			return
		}
		container.SetAttr(AttrIdentifier, id)
		tagged++
	})

	if tagged > 0 {
		e.logger.Debug().Int("tagged", tagged).Msg("Tagged listing containers with identifiers")
	}
	return tagged
}
