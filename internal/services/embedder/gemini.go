// -----------------------------------------------------------------------
// Gemini Embedder - hosted embeddings via the Google GenAI API
// -----------------------------------------------------------------------

package embedder

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/noeticlabs/websearch/internal/interfaces"
)

// TypeGemini names the hosted embedder.
const TypeGemini = "gemini"

const defaultGeminiModel = "gemini-embedding-001"

// GeminiEmbedder calls the GenAI embedding endpoint. The retrieval hint
// maps onto the API's task type so document and query vectors land in the
// same space with the intended asymmetry.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
	logger    arbor.ILogger
}

var _ interfaces.Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder creates the hosted embedder from the configured API
// key and model.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int, logger arbor.ILogger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder requires an API key (set GEMINI_API_KEY)")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	if dimension <= 0 {
		dimension = 384
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiEmbedder{
		client:    client,
		model:     model,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Type returns the provider name.
func (e *GeminiEmbedder) Type() string {
	return TypeGemini
}

// Dimension returns the requested output dimensionality.
func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

// Embed requests one embedding for the text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string, hint interfaces.EmbedHint) ([]float32, error) {
	dim := int32(e.dimension)
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
		TaskType:             taskTypeFor(hint),
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned no embedding values")
	}

	vec := result.Embeddings[0].Values
	// Truncated-dimensionality outputs are not unit length; renormalize so
	// cosine thresholds behave the same as with the local embedder.
	normalize(vec)
	return vec, nil
}

func taskTypeFor(hint interfaces.EmbedHint) string {
	switch hint {
	case interfaces.HintQuery:
		return "RETRIEVAL_QUERY"
	case interfaces.HintClassification:
		return "CLASSIFICATION"
	case interfaces.HintClustering:
		return "CLUSTERING"
	default:
		return "RETRIEVAL_DOCUMENT"
	}
}
