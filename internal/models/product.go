package models

// ProcessingState tracks a listing through the pipeline
type ProcessingState string

const (
	StateUnseen     ProcessingState = "unseen"
	StatePending    ProcessingState = "pending"
	StateResolved   ProcessingState = "resolved"
	StateUnresolved ProcessingState = "unresolved"
	StateBlocked    ProcessingState = "blocked"
)

// BlockedMessage is surfaced to sinks when the storefront rate-limits seller pages
const BlockedMessage = "Too many requests. Amazon blocked seller page. Please try again in a few minutes."

// IsTerminal reports whether no further pipeline work happens for the state
func (s ProcessingState) IsTerminal() bool {
	return s == StateResolved || s == StateUnresolved || s == StateBlocked
}

// Product is a snapshot of one listing element as seen by sinks
type Product struct {
	NodeKey    string          `json:"node_key" yaml:"node_key"`
	Identifier string          `json:"asin" yaml:"asin"`
	State      ProcessingState `json:"state" yaml:"state"`
	Seller     Seller          `json:"seller" yaml:"seller"`
	Profile    *SellerProfile  `json:"profile,omitempty" yaml:"profile,omitempty"`
	Highlight  bool            `json:"highlight" yaml:"highlight"`
	SellerURL  string          `json:"seller_url,omitempty" yaml:"seller_url,omitempty"`
	Message    string          `json:"message,omitempty" yaml:"message,omitempty"`
}

// ShouldHighlight flags third-party sellers located outside the US.
// Amazon-named sellers and sellers without a known country are never flagged.
func ShouldHighlight(seller Seller, profile *SellerProfile) bool {
	if profile == nil || profile.Country == "" || profile.Country == "US" {
		return false
	}
	return !IsAmazonName(seller.DisplayName())
}

// ProductResolution is the outcome of the product stage
type ProductResolution struct {
	Seller    Seller
	FromCache bool
}

// PipelineUpdate carries pipeline progress for one element back to the
// goroutine that owns the document
type PipelineUpdate struct {
	NodeKey  string
	Product  Product
	Terminal bool
}
