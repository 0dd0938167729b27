// -----------------------------------------------------------------------
// Cache Service - direct semantic-cache operations: store arbitrary
// documents, query by meaning, flush and promote
// -----------------------------------------------------------------------

package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// StoreRequest adds one document to the semantic cache.
type StoreRequest struct {
	ID        string            `json:"id,omitempty"` // Generated when empty
	Content   string            `json:"content" validate:"required"`
	EntryType string            `json:"entry_type,omitempty"` // Defaults to search_result
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// QueryRequest is a semantic lookup.
type QueryRequest struct {
	Query     string  `json:"query" validate:"required"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	EntryType string  `json:"entry_type,omitempty"`
}

// QueryResponse carries the matches.
type QueryResponse struct {
	Matches []models.VectorMatch `json:"matches"`
}

// Service exposes the vector store to callers that manage their own cache
// content, bypassing the search and crawl pipelines.
type Service struct {
	config   *common.Config
	embedder interfaces.Embedder
	store    interfaces.VectorStore
	logger   arbor.ILogger
}

// NewService creates the cache service.
func NewService(config *common.Config, embedder interfaces.Embedder, store interfaces.VectorStore, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Store embeds and persists one document.
func (s *Service) Store(ctx context.Context, req *StoreRequest, namespace string) (string, error) {
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("cache store requires content")
	}

	vec, err := s.embedder.Embed(ctx, req.Content, interfaces.HintDocument)
	if err != nil {
		return "", fmt.Errorf("failed to embed content: %w", err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	entryType := req.EntryType
	if entryType == "" {
		entryType = models.EntryTypeSearchResult
	}

	entry := &models.VectorEntry{
		ID:        id,
		Vector:    vec,
		Content:   req.Content,
		EntryType: entryType,
		Namespace: namespace,
		Metadata:  req.Metadata,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return "", err
	}
	return id, nil
}

// Query embeds the text and runs the KNN lookup.
func (s *Service) Query(ctx context.Context, req *QueryRequest, namespace string) (*QueryResponse, error) {
	vec, err := s.embedder.Embed(ctx, req.Query, interfaces.HintQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	var filter *models.MetadataFilter
	if req.EntryType != "" {
		filter = &models.MetadataFilter{EntryType: req.EntryType}
	}

	matches, err := s.store.Search(ctx, vec, topK, req.Threshold, namespace, filter)
	if err != nil {
		return nil, err
	}
	return &QueryResponse{Matches: matches}, nil
}

// Flush removes everything in the namespace; an empty namespace flushes
// the whole index.
func (s *Service) Flush(ctx context.Context, namespace string) (int, error) {
	var filter *models.MetadataFilter
	if namespace != "" {
		filter = &models.MetadataFilter{Namespace: namespace}
	}
	deleted, err := s.store.DeleteByMetadata(ctx, filter)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Str("namespace", namespace).Int("deleted", deleted).Msg("Cache flushed")
	return deleted, nil
}

// Promote copies agent-tier entries into the shared index.
func (s *Service) Promote(ctx context.Context) (int, error) {
	return s.store.Promote(ctx)
}

// Stats returns per-type entry counts.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	total, err := s.store.Count(ctx, "")
	if err != nil {
		return nil, err
	}
	stats["total"] = total

	for _, entryType := range []string{models.EntryTypeSearchResult, models.EntryTypeQueryCache, models.EntryTypeCrawlChunk} {
		n, err := s.store.Count(ctx, entryType)
		if err != nil {
			return nil, err
		}
		stats[entryType] = n
	}
	return stats, nil
}
