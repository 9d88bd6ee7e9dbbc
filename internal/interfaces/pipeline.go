package interfaces

import (
	"context"

	"github.com/ternarybob/soldby/internal/models"
)

// ProductResolver maps a product identifier to the seller fulfilling it
type ProductResolver interface {
	Resolve(ctx context.Context, asin string) (models.ProductResolution, error)
}

// SellerResolver maps a third-party seller to its country and rating
type SellerResolver interface {
	Resolve(ctx context.Context, seller models.Seller, locale string) (models.SellerProfile, error)
}

// PresentationSink consumes products once they reach a terminal state
type PresentationSink interface {
	OnProductStateChanged(ctx context.Context, product models.Product) error
}
