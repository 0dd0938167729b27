package interfaces

import "github.com/noeticlabs/websearch/internal/models"

// Chunker splits long content into overlapping pieces by strategy.
type Chunker interface {
	// Chunk splits content using opts. Each chunk gets a fresh unique id
	// and a token-count estimate.
	Chunk(content string, opts models.ChunkOptions) ([]models.Chunk, error)
}
