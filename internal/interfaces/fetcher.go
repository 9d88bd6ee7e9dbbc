package interfaces

import (
	"context"

	"github.com/ternarybob/soldby/internal/models"
)

// Fetcher performs a GET. Connectivity failures are returned as errors;
// a completed round-trip with any status is returned as a response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.FetchResponse, error)
}
