package interfaces

import "context"

// EmbedHint tells API embedders which provider-side task type to request.
// The local embedder ignores it.
type EmbedHint string

const (
	HintDocument       EmbedHint = "document"
	HintQuery          EmbedHint = "query"
	HintClassification EmbedHint = "classification"
	HintClustering     EmbedHint = "clustering"
)

// Embedder converts text to a fixed-dimension, L2-normalized dense vector.
type Embedder interface {
	// Embed returns the vector for text. Implementations must L2-normalize
	// so cosine similarity equals dot product downstream.
	Embed(ctx context.Context, text string, hint EmbedHint) ([]float32, error)

	// Dimension returns the fixed output dimensionality.
	Dimension() int

	// Type returns the provider discriminator ("local", "gemini", ...).
	Type() string
}
