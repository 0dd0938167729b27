// -----------------------------------------------------------------------
// Local Embedder - deterministic feature-hash embeddings, no network and
// no model download, good enough for cache-similarity lookups
// -----------------------------------------------------------------------

package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/noeticlabs/websearch/internal/interfaces"
)

// TypeLocal names the offline embedder.
const TypeLocal = "local"

// LocalEmbedder hashes word unigrams and bigrams into a fixed-size vector
// and L2-normalizes it. The same text always yields the same vector, so
// cache lookups are stable across restarts.
type LocalEmbedder struct {
	dimension int
}

var _ interfaces.Embedder = (*LocalEmbedder)(nil)

// NewLocalEmbedder creates the offline embedder.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &LocalEmbedder{dimension: dimension}
}

// Type returns the provider name.
func (e *LocalEmbedder) Type() string {
	return TypeLocal
}

// Dimension returns the vector size.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

// Embed produces a unit-length vector. The hint is ignored; hashed
// features are symmetric between documents and queries.
func (e *LocalEmbedder) Embed(ctx context.Context, text string, hint interfaces.EmbedHint) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimension)
	tokens := tokenize(text)

	for _, token := range tokens {
		e.addFeature(vec, token, 1.0)
	}
	// Bigrams capture a little word order; weighted below unigrams so
	// shared vocabulary still dominates similarity.
	for i := 0; i+1 < len(tokens); i++ {
		e.addFeature(vec, tokens[i]+"_"+tokens[i+1], 0.5)
	}

	normalize(vec)
	return vec, nil
}

// addFeature hashes the token to a bucket and a sign, the standard
// hashing-trick construction.
func (e *LocalEmbedder) addFeature(vec []float32, token string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(token))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimension))
	if (sum>>63)&1 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
