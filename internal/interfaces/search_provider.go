package interfaces

import (
	"context"

	"github.com/noeticlabs/websearch/internal/models"
)

// SearchProvider executes live web searches. Providers declare capabilities
// so the service layer can degrade gracefully when one is absent.
type SearchProvider interface {
	// Type returns the provider discriminator ("scraping", "brave", ...).
	Type() string

	// Capabilities describes what the provider supports.
	Capabilities() models.ProviderCapabilities

	// Search runs the query and returns live results.
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
}
