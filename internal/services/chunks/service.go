// -----------------------------------------------------------------------
// Chunk Service - splits content and optionally persists each chunk as a
// crawl_chunk entry in the semantic cache
// -----------------------------------------------------------------------

package chunks

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// Request controls one chunking pass.
type Request struct {
	Content   string              `json:"content" validate:"required"`
	SourceURL string              `json:"source_url,omitempty"`
	Store     bool                `json:"store"`
	Options   models.ChunkOptions `json:"options"`
}

// Response returns the chunks; Stored reflects whether each landed in the
// index.
type Response struct {
	Chunks []models.Chunk `json:"chunks"`
	Stored int            `json:"stored"`
}

// Service chains the chunker with the embedder and vector store.
type Service struct {
	config   *common.Config
	chunker  interfaces.Chunker
	embedder interfaces.Embedder
	store    interfaces.VectorStore
	logger   arbor.ILogger
}

// NewService creates the chunk service.
func NewService(config *common.Config, chunker interfaces.Chunker, embedder interfaces.Embedder, store interfaces.VectorStore, logger arbor.ILogger) *Service {
	return &Service{
		config:   config,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Process splits the content and, when asked, embeds and stores every
// chunk. A chunk whose embedding fails is returned unstored rather than
// failing the batch.
func (s *Service) Process(ctx context.Context, req *Request, namespace string) (*Response, error) {
	chunks, err := s.chunker.Chunk(req.Content, req.Options)
	if err != nil {
		return nil, err
	}

	resp := &Response{Chunks: chunks}
	if !req.Store || len(chunks) == 0 {
		return resp, nil
	}

	strategy := req.Options.EffectiveStrategy()
	entries := make([]*models.VectorEntry, 0, len(chunks))
	stored := make([]int, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Content, interfaces.HintDocument)
		if err != nil {
			s.logger.Warn().Err(err).Int("chunk", chunk.Index).Msg("Failed to embed chunk")
			continue
		}
		entries = append(entries, &models.VectorEntry{
			ID:        chunk.ID,
			Vector:    vec,
			Content:   chunk.Content,
			EntryType: models.EntryTypeCrawlChunk,
			Namespace: namespace,
			Metadata: map[string]string{
				"sourceUrl":  req.SourceURL,
				"strategy":   strategy,
				"chunkIndex": fmt.Sprintf("%d", chunk.Index),
			},
		})
		stored = append(stored, i)
	}

	if len(entries) > 0 {
		if err := s.store.UpsertBatch(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
		for _, i := range stored {
			resp.Chunks[i].Stored = true
		}
		resp.Stored = len(stored)
	}

	return resp, nil
}
