// -----------------------------------------------------------------------
// Chunker - splits content for embedding: sentence packing, raw token
// windows, or markdown-structure-aware semantic blocks
// -----------------------------------------------------------------------

package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// Service implements content chunking.
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.Chunker = (*Service)(nil)

// New creates the chunker.
func New(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Chunk splits content with the selected strategy. Empty or whitespace-only
// content yields no chunks.
func (s *Service) Chunk(content string, opts models.ChunkOptions) ([]models.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return []models.Chunk{}, nil
	}

	var pieces []string
	var err error
	switch opts.EffectiveStrategy() {
	case models.StrategySentence:
		pieces = packSentences(content, opts.EffectiveMaxChunkSize(), opts.EffectiveOverlap())
	case models.StrategyToken:
		pieces = tokenWindows(content, opts.EffectiveMaxChunkSize(), opts.EffectiveOverlap())
	case models.StrategySemantic:
		pieces, err = semanticBlocks(content, opts.EffectiveMaxChunkSize(), opts.EffectiveOverlap())
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q", opts.Strategy)
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewString(),
			Content:    piece,
			Index:      len(chunks),
			TokenCount: estimateTokens(piece),
		})
	}
	return chunks, nil
}

// estimateTokens approximates the common 4-chars-per-token rule.
func estimateTokens(text string) int {
	n := (len(text) + 3) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' || runes[i] == '\n' {
			end := i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t'
			if end {
				sentence := strings.TrimSpace(current.String())
				if sentence != "" {
					sentences = append(sentences, sentence)
				}
				current.Reset()
			}
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// packSentences greedily packs whole sentences into chunks up to maxSize
// characters, carrying overlap characters of trailing sentences forward. A
// single sentence longer than maxSize is hard-split.
func packSentences(text string, maxSize, overlap int) []string {
	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()

		if overlap > 0 && len(chunk) > overlap {
			carry := chunk[len(chunk)-overlap:]
			// Start the carry at a word boundary where possible.
			if idx := strings.IndexByte(carry, ' '); idx >= 0 && idx+1 < len(carry) {
				carry = carry[idx+1:]
			}
			current.WriteString(carry)
		}
	}

	for _, sentence := range sentences {
		if len(sentence) > maxSize {
			flush()
			for _, piece := range hardSplit(sentence, maxSize, overlap) {
				chunks = append(chunks, piece)
			}
			current.Reset()
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardSplit cuts an oversized run into maxSize windows with overlap.
func hardSplit(text string, maxSize, overlap int) []string {
	step := maxSize - overlap
	if step <= 0 {
		step = maxSize
	}
	var pieces []string
	for start := 0; start < len(text); start += step {
		end := start + maxSize
		if end > len(text) {
			end = len(text)
		}
		pieces = append(pieces, text[start:end])
		if end == len(text) {
			break
		}
	}
	return pieces
}

// tokenWindows splits on whitespace tokens with a sliding window. maxSize
// and overlap are counted in tokens for this strategy.
func tokenWindows(text string, maxTokens, overlapTokens int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	step := maxTokens - overlapTokens
	if step <= 0 {
		step = maxTokens
	}

	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		if end == len(tokens) {
			break
		}
	}
	return chunks
}
