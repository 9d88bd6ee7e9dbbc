package seller

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/soldby/internal/models"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

const redesignedPage = `
<div id="seller-profile-container" class="spp-redesigned">
  <h1 id="seller-name">Acme Traders</h1>
  <div id="seller-info-feedback-summary">
    <span class="feedback-detail-description"><i><span class="a-icon-alt">4.5 out of 5 stars</span></i>4.5 out of 5 stars 91% positive over last 12 months (1,234 ratings)</span>
  </div>
  <div id="page-section-detail-seller-info"><div class="a-box-inner">
    <div class="a-row a-spacing-none indent-left"><span>No. 8 Industrial Road</span></div>
    <div class="a-row a-spacing-none indent-left"><span>Shenzhen</span></div>
    <div class="a-row a-spacing-none indent-left"><span>CN</span></div>
  </div></div>
</div>`

const legacyPage = `
<div id="seller-profile-container">
  <h1 id="seller-name">Berliner Handel</h1>
  <ul class="a-unordered-list a-nostyle a-vertical"><li>Something else</li></ul>
  <ul class="a-unordered-list a-nostyle a-vertical">
    <li>Hauptstrasse 1</li>
    <li>Berlin</li>
    <li>de</li>
  </ul>
  <div id="seller-info-feedback-summary">
    <span class="feedback-detail-description">98 % positiv in den letzten 12 Monaten (2.345 Bewertungen)</span>
  </div>
</div>`

func TestValidateCountry(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"DE", "DE"},
		{"de", "DE"},
		{"  CN\n", "CN"},
		{"Germany", "?"},
		{"12", "?"},
		{"", "?"},
		{"D", "?"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateCountry(tt.raw))
		})
	}
}

func TestRatingRule_Parse(t *testing.T) {
	tests := []struct {
		name   string
		locale string
		text   string
		want   models.Rating
	}{
		{"default", "en-us", "91% positive over last 12 months (1,234 ratings)", models.Rating{Score: "91%", Count: "1234"}},
		{"default small count", "", "100% positive in the last 12 months (7 ratings)", models.Rating{Score: "100%", Count: "7"}},
		{"turkish prefix", "tr-tr", "%89 olumlu son 12 ay (1.020 değerlendirme)", models.Rating{Score: "%89", Count: "1020"}},
		{"german spaced", "de-de", "98 % positiv in den letzten 12 Monaten (2.345 Bewertungen)", models.Rating{Score: "98 %", Count: "2345"}},
		{"belgian french spaced", "FR-BE", "95 % positif (12 évaluations)", models.Rating{Score: "95 %", Count: "12"}},
		{"default unmatched", "en-us", "Just launched", models.Rating{Score: "0%", Count: "0"}},
		{"turkish unmatched", "tr-tr", "", models.Rating{Score: "%0", Count: "0"}},
		{"german unmatched", "de-de", "91% positive (3 ratings)", models.Rating{Score: "0 %", Count: "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RatingRuleFor(tt.locale).Parse(tt.text))
		})
	}
}

func TestParseRating_FirstPartyHidesRating(t *testing.T) {
	page := doc(t, `<h1 id="seller-name">Amazon.com Services LLC</h1>
		<div id="seller-info-feedback-summary"><span class="feedback-detail-description">91% positive (1,234 ratings)</span></div>`)

	rating := ParseRating(page, "en-us")
	assert.True(t, rating.Hidden)
	assert.Empty(t, rating.Score, "no rating is distinct from a zero rating")
}

func TestParseRating_MissingSummaryIsZero(t *testing.T) {
	rating := ParseRating(doc(t, `<h1 id="seller-name">New Shop</h1>`), "en-us")
	assert.Equal(t, models.Rating{Score: "0%", Count: "0"}, rating)
}

func TestParseSellerPage(t *testing.T) {
	profile := ParseSellerPage(doc(t, redesignedPage), "en-us")
	assert.Equal(t, "CN", profile.Country)
	assert.Equal(t, models.Rating{Score: "91%", Count: "1234"}, profile.Rating, "star label text is stripped before matching")

	profile = ParseSellerPage(doc(t, legacyPage), "de-de")
	assert.Equal(t, "DE", profile.Country)
	assert.Equal(t, models.Rating{Score: "98 %", Count: "2345"}, profile.Rating)
}

func TestCountryStrategyFor(t *testing.T) {
	assert.IsType(t, RedesignedCountry{}, CountryStrategyFor(doc(t, redesignedPage)))
	assert.IsType(t, LegacyCountry{}, CountryStrategyFor(doc(t, legacyPage)))

	// Neither layout present
	empty := doc(t, `<div></div>`)
	assert.Equal(t, "?", ValidateCountry(CountryStrategyFor(empty).Country(empty)))
	assert.Equal(t, "", RedesignedCountry{}.Country(empty))
}
