package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cache key namespaces
const (
	ProductKeyPrefix = "product:"
	SellerKeyPrefix  = "seller:"
)

// ProductKey returns the cache key for a product identifier
func ProductKey(asin string) string {
	return ProductKeyPrefix + asin
}

// SellerKey returns the cache key for a seller identifier
func SellerKey(sellerID string) string {
	return SellerKeyPrefix + sellerID
}

// ProductEntry is the cached outcome of the product stage.
// SellerID is omitted for first-party sellers.
type ProductEntry struct {
	SellerID   string `json:"sid,omitempty"`
	SellerName string `json:"sn"`
	StoredAt   Millis `json:"ts"`
}

// Seller rebuilds the tagged seller from the entry
func (e ProductEntry) Seller() Seller {
	return SellerFromStored(e.SellerID, e.SellerName)
}

// NewProductEntry builds an entry for a seller. Unknown sellers are not cacheable.
func NewProductEntry(seller Seller, now time.Time) (ProductEntry, bool) {
	switch seller.Kind {
	case SellerThirdParty:
		return ProductEntry{SellerID: seller.ID, SellerName: seller.Name, StoredAt: NewMillis(now)}, true
	case SellerFirstParty:
		return ProductEntry{SellerName: FirstPartyName, StoredAt: NewMillis(now)}, true
	default:
		return ProductEntry{}, false
	}
}

// SellerEntry is the cached outcome of the seller stage
type SellerEntry struct {
	Country      string `json:"c"`
	RatingScore  string `json:"rs"`
	RatingCount  string `json:"rc"`
	RatingHidden bool   `json:"rh,omitempty"`
	StoredAt     Millis `json:"ts"`
}

// NewSellerEntry builds an entry from a parsed profile
func NewSellerEntry(profile SellerProfile, now time.Time) SellerEntry {
	return SellerEntry{
		Country:      profile.Country,
		RatingScore:  profile.Rating.Score,
		RatingCount:  profile.Rating.Count,
		RatingHidden: profile.Rating.Hidden,
		StoredAt:     NewMillis(now),
	}
}

// Profile rebuilds the seller profile from the entry
func (e SellerEntry) Profile() SellerProfile {
	return SellerProfile{
		Country: e.Country,
		Rating: Rating{
			Score:  e.RatingScore,
			Count:  e.RatingCount,
			Hidden: e.RatingHidden,
		},
	}
}

// Millis is a Unix millisecond timestamp. It encodes as a JSON number and
// decodes from either a number or a quoted number.
type Millis int64

// NewMillis returns the timestamp of t
func NewMillis(t time.Time) Millis {
	return Millis(t.UnixMilli())
}

// UnmarshalJSON accepts 1700000000000 and "1700000000000"
func (m *Millis) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	*m = Millis(v)
	return nil
}

// Age returns how long ago a millisecond timestamp was taken
func Age(storedAt Millis, now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(int64(storedAt)))
}
