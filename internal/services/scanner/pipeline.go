package scanner

import (
	"context"
	"errors"

	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/seller"
)

// resolve runs product then seller resolution for one element. The seller
// name is reported as soon as the product stage knows it.
func (s *Scheduler) resolve(ctx context.Context, key, asin string) models.PipelineUpdate {
	product := models.Product{
		NodeKey:    key,
		Identifier: asin,
		State:      models.StatePending,
		Seller:     models.UnknownSeller(),
	}

	resolution, err := s.products.Resolve(ctx, asin)
	if err != nil {
		s.logger.Warn().Err(err).Str("asin", asin).Msg("Product resolution failed")
		product.State = models.StateUnresolved
		product.Message = err.Error()
		return terminal(product)
	}
	product.Seller = resolution.Seller

	switch resolution.Seller.Kind {
	case models.SellerUnknown:
		product.State = models.StateUnresolved
		return terminal(product)
	case models.SellerThirdParty:
		product.SellerURL = models.SellerProfileURL(s.baseURL, resolution.Seller.ID)
	}

	if !resolution.Seller.NeedsProfile() {
		product.State = models.StateResolved
		return terminal(product)
	}

	s.send(ctx, models.PipelineUpdate{NodeKey: key, Product: product})

	profile, err := s.sellers.Resolve(ctx, resolution.Seller, s.locale)
	switch {
	case errors.Is(err, seller.ErrBlocked):
		s.logger.Warn().Str("asin", asin).Str("seller_id", resolution.Seller.ID).Msg(models.BlockedMessage)
		product.State = models.StateBlocked
		product.Message = models.BlockedMessage
	case err != nil:
		s.logger.Warn().Err(err).Str("asin", asin).Str("seller_id", resolution.Seller.ID).Msg("Seller resolution failed")
		product.State = models.StateUnresolved
		product.Message = err.Error()
	default:
		product.State = models.StateResolved
		product.Profile = &profile
		product.Highlight = models.ShouldHighlight(resolution.Seller, &profile)
	}

	return terminal(product)
}

func terminal(product models.Product) models.PipelineUpdate {
	return models.PipelineUpdate{NodeKey: product.NodeKey, Product: product, Terminal: true}
}
