// -----------------------------------------------------------------------
// Web Search Service - semantic cache in front of a live provider. Cached
// results similar enough to the incoming query short-circuit the provider
// entirely; live results are written back for the next caller.
// -----------------------------------------------------------------------

package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// Service fronts the search provider with the semantic query cache.
type Service struct {
	config   *common.Config
	embedder interfaces.Embedder
	store    interfaces.VectorStore
	provider interfaces.SearchProvider
	logger   arbor.ILogger
}

// NewService creates the web search service.
func NewService(config *common.Config, embedder interfaces.Embedder, store interfaces.VectorStore, provider interfaces.SearchProvider, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		embedder: embedder,
		store:    store,
		provider: provider,
		logger:   logger,
	}
}

// NewProviderFromConfig builds the configured live provider.
func NewProviderFromConfig(config *common.Config, logger arbor.ILogger) (interfaces.SearchProvider, error) {
	switch config.Search.Provider {
	case "", TypeScraping:
		return NewScrapeProvider(config, logger), nil
	case TypeBrave:
		return NewBraveProvider(config, logger)
	default:
		return nil, fmt.Errorf("unknown search provider %q", config.Search.Provider)
	}
}

// Search answers from the semantic cache when cached results are similar
// enough to the query, otherwise hits the live provider and caches the
// outcome.
func (s *Service) Search(ctx context.Context, req *models.SearchRequest, namespace string) (*models.SearchResponse, error) {
	start := time.Now()

	queryVec, err := s.embedder.Embed(ctx, req.Query, interfaces.HintQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	if !req.SkipCache {
		if cached := s.probeCache(ctx, queryVec, req.EffectiveMaxResults(), namespace); cached != nil {
			cached.FromCache = true
			cached.Duration = time.Since(start)
			s.logger.Debug().Str("query", req.Query).Str("namespace", namespace).Msg("Semantic cache hit")
			return cached, nil
		}
	}

	s.warnUnsupported(req)
	response, err := s.provider.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	response.Duration = time.Since(start)

	if s.config.Search.WriteBackEnabled && len(response.Results) > 0 {
		s.writeBack(ctx, req.Query, namespace, response)
	}

	return response, nil
}

// warnUnsupported logs requested options the configured provider cannot
// honor. The search still runs; the provider ignores what it does not
// support.
func (s *Service) warnUnsupported(req *models.SearchRequest) {
	caps := s.provider.Capabilities()
	if req.Freshness != models.FreshnessNone && !caps.Freshness {
		s.logger.Warn().Str("provider", s.provider.Type()).Msg("Provider ignores the freshness filter")
	}
	if (len(req.IncludeDomains) > 0 || len(req.ExcludeDomains) > 0) && !caps.DomainFilter {
		s.logger.Warn().Str("provider", s.provider.Type()).Msg("Provider ignores domain filters")
	}
	if req.Language != "" && !caps.Language {
		s.logger.Warn().Str("provider", s.provider.Type()).Msg("Provider ignores the language option")
	}
	if req.Country != "" && !caps.Country {
		s.logger.Warn().Str("provider", s.provider.Type()).Msg("Provider ignores the country option")
	}
}

// probeCache runs the query vector against the cached search results and
// rebuilds a response from their metadata. Any cache error degrades to a
// live search.
func (s *Service) probeCache(ctx context.Context, queryVec []float32, maxResults int, namespace string) *models.SearchResponse {
	matches, err := s.store.Search(ctx, queryVec, maxResults, s.config.Search.CacheThreshold, namespace,
		&models.MetadataFilter{EntryType: models.EntryTypeSearchResult})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Cache probe failed, going live")
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			Title:   m.Metadata["title"],
			URL:     m.Metadata["url"],
			Snippet: m.Content,
			Score:   m.Score,
		})
	}
	return &models.SearchResponse{
		Results:  results,
		Provider: "cache",
	}
}

// writeBack indexes each live result as a searchable cache entry keyed by
// its URL. Failures are logged and swallowed; a broken cache must not fail
// a successful search.
func (s *Service) writeBack(ctx context.Context, query, namespace string, response *models.SearchResponse) {
	entries := make([]*models.VectorEntry, 0, len(response.Results))
	for _, result := range response.Results {
		vec, err := s.embedder.Embed(ctx, result.Title+" "+result.Snippet, interfaces.HintDocument)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", result.URL).Msg("Failed to embed search result")
			continue
		}
		entries = append(entries, &models.VectorEntry{
			ID:        resultID(result.URL),
			Vector:    vec,
			Content:   result.Snippet,
			EntryType: models.EntryTypeSearchResult,
			Namespace: namespace,
			Metadata: map[string]string{
				"url":   result.URL,
				"title": result.Title,
				"query": query,
			},
		})
	}

	if len(entries) == 0 {
		return
	}
	if err := s.store.UpsertBatch(ctx, entries); err != nil {
		s.logger.Warn().Err(err).Int("entries", len(entries)).Msg("Cache write-back failed")
	}
}

// resultID is deterministic per URL so re-crawled results replace their
// cached entry instead of accumulating.
func resultID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "result-" + hex.EncodeToString(sum[:])[:16]
}
