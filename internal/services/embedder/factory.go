// -----------------------------------------------------------------------
// Embedder Factory - provider selection from configuration
// -----------------------------------------------------------------------

package embedder

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
)

// NewFromConfig builds the configured embedding provider. An unknown
// provider is a configuration error rather than a silent local fallback;
// mixing providers would poison the index with incompatible vectors.
func NewFromConfig(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.Embedder, error) {
	switch config.Embedding.Provider {
	case "", TypeLocal:
		return NewLocalEmbedder(config.Embedding.Dimension), nil

	case TypeGemini:
		return NewGeminiEmbedder(ctx, config.Embedding.APIKey, config.Embedding.Model, config.Embedding.Dimension, logger)

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Embedding.Provider)
	}
}
