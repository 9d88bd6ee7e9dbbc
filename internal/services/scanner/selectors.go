package scanner

import (
	"strings"

	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/extractor"
)

// Attributes the scanner owns on product elements
const (
	AttrSellerName  = "data-seller-name"
	AttrSellerID    = "data-seller-id"
	AttrCountry     = "data-seller-country"
	AttrRatingScore = "data-seller-rating-score"
	AttrRatingCount = "data-seller-rating-count"
	AttrState       = "data-soldby-state"
	AttrNode        = "data-soldby-node"

	HighlightClass = "product--highlight"
)

// ProductExclusions filter identified elements that are not product listings.
// [data-seller-name] also excludes everything the scanner has already marked.
var ProductExclusions = []string{
	`[data-asin=""]`,
	`[data-seller-name]`,
	`[data-uuid*=s-searchgrid-carousel]`,
	`[role="img"]`,
	`#averageCustomerReviews`,
	`#detailBullets_averageCustomerReviews`,
	`.inline-twister-swatch`,
	`.contributorNameID`,
	`.a-hidden`,
	`.rpi-learn-more-card-content`,
	`#reviews-image-gallery-container`,
	`[class*=_cross-border-widget_style_preload-widget]`,
	`[data-video-url]`,
}

// ProductSelector matches identified, unmarked product elements
func ProductSelector() string {
	var b strings.Builder
	b.WriteString("div[" + extractor.AttrIdentifier + "]")
	for _, exclusion := range ProductExclusions {
		b.WriteString(":not(" + exclusion + ")")
	}
	return b.String()
}

// TrackedSelector matches every element a live page must stamp with a node
// key so the scanner can address it later
func TrackedSelector() string {
	return strings.Join(append([]string{"div[" + extractor.AttrIdentifier + "]"}, extractor.ContainerSelectors...), ", ")
}

func nodeSelector(key string) string {
	return "[" + AttrNode + `="` + key + `"]`
}

// Attributes returns the element attributes describing product
func Attributes(product models.Product) map[string]string {
	attrs := map[string]string{
		AttrSellerName: product.Seller.DisplayName(),
		AttrState:      string(product.State),
	}
	if product.Seller.ID != "" {
		attrs[AttrSellerID] = product.Seller.ID
	}
	if product.Profile != nil {
		attrs[AttrCountry] = product.Profile.Country
		if !product.Profile.Rating.Hidden {
			attrs[AttrRatingScore] = product.Profile.Rating.Score
			attrs[AttrRatingCount] = product.Profile.Rating.Count
		}
	}
	return attrs
}
