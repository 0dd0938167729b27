// -----------------------------------------------------------------------
// Crawl Service - single-page crawl through the fetcher chain with
// optional auto-chunking into the semantic cache
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"errors"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/fetcher"
)

// CrawlRequest is a single-page crawl.
type CrawlRequest struct {
	Fetch     models.FetchRequest `json:"fetch"`
	AutoChunk bool                `json:"auto_chunk"`
	Strategy  string              `json:"chunk_strategy,omitempty"`
}

// CrawlResponse is the fetch result plus chunking outcome.
type CrawlResponse struct {
	Result  *models.FetchResult `json:"result"`
	Chunked int                 `json:"chunked"`
}

// Service performs crawls: resolve the fetcher, fetch, and optionally
// chunk the content into the index.
type Service struct {
	config   *common.Config
	resolver *fetcher.Resolver
	chunks   *chunks.Service
	logger   arbor.ILogger
}

// NewService creates the crawl service.
func NewService(config *common.Config, resolver *fetcher.Resolver, chunkSvc *chunks.Service, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		resolver: resolver,
		chunks:   chunkSvc,
		logger:   logger,
	}
}

// Crawl fetches one page. Chunking failures do not fail the crawl; the
// page content is already in hand. A URL that exhausts the fetcher chain
// yields a structured zero-status result rather than an error, so one bad
// page never turns into a transport failure for the caller.
func (s *Service) Crawl(ctx context.Context, req *CrawlRequest, namespace string) (*CrawlResponse, error) {
	result, err := s.resolver.Fetch(ctx, &req.Fetch)
	if err != nil {
		if !errors.Is(err, fetcher.ErrFetchExhausted) {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("url", req.Fetch.URL).Msg("Fetcher chain exhausted")
		return &CrawlResponse{Result: &models.FetchResult{
			URL:          req.Fetch.URL,
			ProviderMeta: map[string]string{"error": err.Error()},
		}}, nil
	}

	resp := &CrawlResponse{Result: result}
	if !req.AutoChunk || result.Content == "" {
		return resp, nil
	}

	chunkResp, err := s.chunks.Process(ctx, &chunks.Request{
		Content:   result.Content,
		SourceURL: result.URL,
		Store:     true,
		Options:   models.ChunkOptions{Strategy: req.Strategy},
	}, namespace)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", result.URL).Msg("Auto-chunk failed after successful crawl")
		return resp, nil
	}
	resp.Chunked = chunkResp.Stored

	return resp, nil
}
