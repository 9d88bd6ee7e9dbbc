package models

import (
	"net/url"
	"regexp"
	"strings"
)

// SellerKind classifies who fulfils a listing
type SellerKind string

const (
	SellerUnknown    SellerKind = "unknown"
	SellerFirstParty SellerKind = "first_party"
	SellerThirdParty SellerKind = "third_party"
)

// Display names written to the page and to product cache entries
const (
	FirstPartyName = "Amazon"
	UnknownName    = "? ? ?"
	LoadingName    = "loading..."
	UnknownCountry = "?"
)

var amazonPrefix = regexp.MustCompile(`^Amazon\b`)

// Seller is a tagged variant: ID and Name are only meaningful for SellerThirdParty
type Seller struct {
	Kind SellerKind `json:"kind" yaml:"kind"`
	ID   string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name string     `json:"name,omitempty" yaml:"name,omitempty"`
}

// FirstParty returns the first-party seller
func FirstParty() Seller {
	return Seller{Kind: SellerFirstParty}
}

// ThirdParty returns a third-party seller
func ThirdParty(id, name string) Seller {
	return Seller{Kind: SellerThirdParty, ID: id, Name: name}
}

// UnknownSeller returns the unknown seller
func UnknownSeller() Seller {
	return Seller{Kind: SellerUnknown}
}

// DisplayName returns the name shown for the seller
func (s Seller) DisplayName() string {
	switch s.Kind {
	case SellerFirstParty:
		return FirstPartyName
	case SellerThirdParty:
		return s.Name
	default:
		return UnknownName
	}
}

// NeedsProfile reports whether the seller page must be consulted.
// First-party and unknown sellers short-circuit the seller stage, as do
// third parties whose name marks them as an Amazon subsidiary.
func (s Seller) NeedsProfile() bool {
	return s.Kind == SellerThirdParty && s.ID != "" && !strings.Contains(s.Name, FirstPartyName)
}

// IsAmazonName reports whether a display name starts with the first-party marker
func IsAmazonName(name string) bool {
	return amazonPrefix.MatchString(name)
}

// SellerFromStored rebuilds a Seller from the id/name pair kept in the cache and DOM
func SellerFromStored(id, name string) Seller {
	switch {
	case id != "":
		return ThirdParty(id, name)
	case name == UnknownName || name == "":
		return UnknownSeller()
	default:
		return FirstParty()
	}
}

// Rating is the feedback summary of a seller. Hidden means the page shows no
// rating at all, which is not the same as a zero rating.
type Rating struct {
	Score  string `json:"score,omitempty" yaml:"score,omitempty"`
	Count  string `json:"count,omitempty" yaml:"count,omitempty"`
	Hidden bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
}

// SellerProfile is what the seller page yields
type SellerProfile struct {
	Country string `json:"country" yaml:"country"`
	Rating  Rating `json:"rating" yaml:"rating"`
}

// SellerProfileURL builds the seller profile link for a storefront
func SellerProfileURL(baseURL, sellerID string) string {
	return strings.TrimRight(baseURL, "/") + "/sp?seller=" + url.QueryEscape(sellerID)
}

// ProductPageURL builds the canonical product detail link for a storefront
func ProductPageURL(baseURL, asin string) string {
	return strings.TrimRight(baseURL, "/") + "/dp/" + url.PathEscape(asin) + "?psc=1"
}
