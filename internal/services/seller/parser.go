package seller

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/soldby/internal/models"
)

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// CountryStrategy extracts the raw country text for one seller page layout
type CountryStrategy interface {
	Name() string
	Country(doc *goquery.Document) string
}

// RedesignedCountry reads the last address row of the seller details panel
type RedesignedCountry struct{}

func (RedesignedCountry) Name() string { return "redesigned" }

func (RedesignedCountry) Country(doc *goquery.Document) string {
	rows := doc.Find("#page-section-detail-seller-info .a-box-inner .a-row.a-spacing-none.indent-left")
	if rows.Length() == 0 {
		return ""
	}
	return rows.Last().Text()
}

// LegacyCountry reads the last list item of the last vertical list
type LegacyCountry struct{}

func (LegacyCountry) Name() string { return "legacy" }

func (LegacyCountry) Country(doc *goquery.Document) string {
	lists := doc.Find("ul.a-unordered-list.a-nostyle.a-vertical")
	if lists.Length() == 0 {
		return ""
	}
	items := lists.Last().Find("li")
	if items.Length() == 0 {
		return ""
	}
	return items.Last().Text()
}

// IsRedesigned detects the redesigned seller profile layout
func IsRedesigned(doc *goquery.Document) bool {
	return doc.Find("#seller-profile-container").HasClass("spp-redesigned")
}

// CountryStrategyFor picks the strategy matching the page layout
func CountryStrategyFor(doc *goquery.Document) CountryStrategy {
	if IsRedesigned(doc) {
		return RedesignedCountry{}
	}
	return LegacyCountry{}
}

// ValidateCountry uppercases raw and accepts exactly two letters;
// anything else becomes the unknown country "?"
func ValidateCountry(raw string) string {
	country := strings.ToUpper(strings.TrimSpace(raw))
	if countryPattern.MatchString(country) {
		return country
	}
	return models.UnknownCountry
}

// RatingRule parses the feedback summary for one family of locales
type RatingRule struct {
	Pattern     *regexp.Regexp
	ZeroPercent string
}

var (
	suffixPercent = RatingRule{Pattern: regexp.MustCompile(`(\d+%).*?\(([\d.,\s]+)`), ZeroPercent: "0%"}
	prefixPercent = RatingRule{Pattern: regexp.MustCompile(`(%\d+).*?\(([\d.,\s]+)`), ZeroPercent: "%0"}
	spacedPercent = RatingRule{Pattern: regexp.MustCompile(`(\d+ %).*?\(([\d.,\s]+)`), ZeroPercent: "0 %"}
)

// RatingRuleFor returns the rule for a page language such as "de-de"
func RatingRuleFor(locale string) RatingRule {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "tr-tr":
		return prefixPercent
	case "de-de", "fr-be":
		return spacedPercent
	default:
		return suffixPercent
	}
}

// Parse extracts score and count from description text. Unmatched text
// yields the locale's zero score and a zero count.
func (r RatingRule) Parse(text string) models.Rating {
	match := r.Pattern.FindStringSubmatch(text)
	if match == nil {
		return models.Rating{Score: r.ZeroPercent, Count: "0"}
	}

	count := strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, match[2])
	if count == "" {
		count = "0"
	}

	return models.Rating{Score: match[1], Count: count}
}

// ParseRating reads the seller's feedback summary. Sellers whose display name
// carries the first-party marker show no rating, reported as Hidden.
func ParseRating(doc *goquery.Document, locale string) models.Rating {
	if strings.Contains(doc.Find("#seller-name").First().Text(), models.FirstPartyName) {
		return models.Rating{Hidden: true}
	}

	summary := doc.Find("#seller-info-feedback-summary").First()
	text := summary.Find(".feedback-detail-description").First().Text()
	if star := summary.Find(".a-icon-alt").First().Text(); star != "" {
		text = strings.Replace(text, star, "", 1)
	}

	return RatingRuleFor(locale).Parse(text)
}

// ParseSellerPage extracts country and rating from a seller profile page
func ParseSellerPage(doc *goquery.Document, locale string) models.SellerProfile {
	return models.SellerProfile{
		Country: ValidateCountry(CountryStrategyFor(doc).Country(doc)),
		Rating:  ParseRating(doc, locale),
	}
}
