package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("SoldBy", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("base_url", config.Site.BaseURL).
		Str("storage", config.Storage.Type).
		Str("product_ttl", config.Cache.ProductTTL).
		Str("seller_ttl", config.Cache.SellerTTL).
		Msg("SoldBy starting")
}
