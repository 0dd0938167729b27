package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
)

func TestChunk_EmptyContent(t *testing.T) {
	s := New(common.GetLogger())
	chunks, err := s.Chunk("   \n\t ", models.ChunkOptions{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_ShortContentSingleChunk(t *testing.T) {
	s := New(common.GetLogger())
	chunks, err := s.Chunk("One short sentence.", models.ChunkOptions{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "One short sentence.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
	assert.NotEmpty(t, chunks[0].ID)
	assert.Greater(t, chunks[0].TokenCount, 0)
	assert.False(t, chunks[0].Stored)
}

func TestChunk_SentenceStrategyRespectsMaxSize(t *testing.T) {
	s := New(common.GetLogger())

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("This is a reasonably long sentence used to force several chunks. ")
	}

	chunks, err := s.Chunk(sb.String(), models.ChunkOptions{
		Strategy:     models.StrategySentence,
		MaxChunkSize: 300,
		Overlap:      50,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 300+50, "chunk %d too large", c.Index)
	}
	// Indices are sequential.
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunk_SentenceOverlapCarriesText(t *testing.T) {
	s := New(common.GetLogger())

	content := strings.Repeat("Alpha beta gamma delta epsilon zeta. ", 30)
	chunks, err := s.Chunk(content, models.ChunkOptions{
		Strategy:     models.StrategySentence,
		MaxChunkSize: 200,
		Overlap:      60,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// The head of each later chunk repeats the tail of its predecessor.
	head := chunks[1].Content
	if len(head) > 20 {
		head = head[:20]
	}
	assert.Contains(t, chunks[0].Content, head)
}

func TestChunk_TokenStrategy(t *testing.T) {
	s := New(common.GetLogger())

	words := make([]string, 100)
	for i := range words {
		words[i] = "word"
	}

	chunks, err := s.Chunk(strings.Join(words, " "), models.ChunkOptions{
		Strategy:     models.StrategyToken,
		MaxChunkSize: 30,
		Overlap:      5,
	})
	require.NoError(t, err)
	require.Equal(t, 4, len(chunks)) // step 25: 0..30, 25..55, 50..80, 75..100

	first := strings.Fields(chunks[0].Content)
	assert.Len(t, first, 30)
}

func TestChunk_SemanticSplitsAtHeadings(t *testing.T) {
	s := New(common.GetLogger())

	markdown := "# Install\n\n" + strings.Repeat("Install instructions sentence. ", 20) +
		"\n\n# Configure\n\n" + strings.Repeat("Configuration detail sentence. ", 20)

	chunks, err := s.Chunk(markdown, models.ChunkOptions{
		Strategy:     models.StrategySemantic,
		MaxChunkSize: 700,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	// No chunk mixes the two sections.
	for _, c := range chunks {
		mixed := strings.Contains(c.Content, "Install instructions") &&
			strings.Contains(c.Content, "Configuration detail")
		assert.False(t, mixed, "chunk %d straddles a heading boundary", c.Index)
	}
	assert.Contains(t, chunks[0].Content, "# Install")
}

func TestChunk_SemanticPlainTextFallsBack(t *testing.T) {
	s := New(common.GetLogger())
	chunks, err := s.Chunk("Just plain prose without any markdown structure.", models.ChunkOptions{
		Strategy: models.StrategySemantic,
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
}

func TestChunk_UnknownStrategy(t *testing.T) {
	s := New(common.GetLogger())
	_, err := s.Chunk("text", models.ChunkOptions{Strategy: "mystery"})
	require.Error(t, err)
}

func TestChunk_OversizedSingleSentenceHardSplit(t *testing.T) {
	s := New(common.GetLogger())

	chunks, err := s.Chunk(strings.Repeat("x", 5000), models.ChunkOptions{
		Strategy:     models.StrategySentence,
		MaxChunkSize: 1000,
		Overlap:      100,
	})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 1000)
	}
}
