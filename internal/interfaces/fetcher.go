package interfaces

import (
	"context"

	"github.com/noeticlabs/websearch/internal/models"
)

// Fetcher retrieves a single page. Implementations return structured
// failures (StatusCode 0) for transport errors on the terminal path and
// real errors only when the resolver should try the next fetcher.
type Fetcher interface {
	// Type returns the fetcher name used by mode selection and domain rules
	// ("static", "dynamic", "api").
	Type() string

	// Supports reports whether this fetcher can serve the request at all
	// (e.g. the dynamic fetcher without a browser binary still supports
	// requests via its static fallback).
	Supports(req *models.FetchRequest) bool

	// Fetch retrieves the page.
	Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error)
}
