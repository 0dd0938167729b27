package models

// Chunk strategies understood by the chunker.
const (
	StrategySentence = "sentence"
	StrategyToken    = "token"
	StrategySemantic = "semantic"
)

// Chunk is one piece of split content. Stored is filled in by the chunk
// service after the embedding is written to the index, not by the chunker.
type Chunk struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Index      int    `json:"index"`
	TokenCount int    `json:"token_count"`
	Stored     bool   `json:"stored"`
}

// ChunkOptions controls splitting. MaxChunkSize is characters for the
// sentence and semantic strategies and tokens for the token strategy.
type ChunkOptions struct {
	Strategy     string `json:"strategy,omitempty"`
	MaxChunkSize int    `json:"max_chunk_size,omitempty"`
	Overlap      int    `json:"overlap,omitempty"`
}

// EffectiveStrategy defaults to sentence splitting.
func (o ChunkOptions) EffectiveStrategy() string {
	if o.Strategy == "" {
		return StrategySentence
	}
	return o.Strategy
}

// EffectiveMaxChunkSize defaults to 1200.
func (o ChunkOptions) EffectiveMaxChunkSize() int {
	if o.MaxChunkSize <= 0 {
		return 1200
	}
	return o.MaxChunkSize
}

// EffectiveOverlap defaults to 100 and is clamped below the chunk size.
func (o ChunkOptions) EffectiveOverlap() int {
	overlap := o.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap == 0 {
		overlap = 100
	}
	if max := o.EffectiveMaxChunkSize(); overlap >= max {
		overlap = max / 4
	}
	return overlap
}
