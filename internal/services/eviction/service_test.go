package eviction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/storage/vector"
)

func seedEntry(t *testing.T, store *vector.Store, id, entryType string, age time.Duration) {
	t.Helper()
	err := store.Upsert(context.Background(), &models.VectorEntry{
		ID:        id,
		Vector:    []float32{1, 0, 0, 0},
		Content:   "content",
		EntryType: entryType,
		Namespace: "default",
		CreatedAt: time.Now().Add(-age),
	})
	require.NoError(t, err)
}

func newFixture(t *testing.T) (*Service, *vector.Store) {
	t.Helper()
	logger := common.GetLogger()
	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(common.NewDefaultConfig(), store, logger), store
}

func TestSweep_TTLPerEntryType(t *testing.T) {
	s, store := newFixture(t)
	ctx := context.Background()

	// search_result: 24h TTL
	seedEntry(t, store, "search-old", models.EntryTypeSearchResult, 25*time.Hour)
	seedEntry(t, store, "search-mid", models.EntryTypeSearchResult, 23*time.Hour)
	seedEntry(t, store, "search-new", models.EntryTypeSearchResult, time.Hour)
	// query_cache: 6h TTL
	seedEntry(t, store, "query-old", models.EntryTypeQueryCache, 7*time.Hour)
	seedEntry(t, store, "query-new", models.EntryTypeQueryCache, time.Hour)
	// crawl_chunk: 7d TTL
	seedEntry(t, store, "chunk-old", models.EntryTypeCrawlChunk, 8*24*time.Hour)
	seedEntry(t, store, "chunk-new", models.EntryTypeCrawlChunk, 24*time.Hour)

	result, err := s.Sweep(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Deleted)
	assert.Equal(t, 1, result.ByType[models.EntryTypeSearchResult])
	assert.Equal(t, 1, result.ByType[models.EntryTypeQueryCache])
	assert.Equal(t, 1, result.ByType[models.EntryTypeCrawlChunk])

	for _, id := range []string{"search-mid", "search-new", "query-new", "chunk-new"} {
		_, err := store.Get(ctx, "default", id)
		assert.NoError(t, err, "entry %s should have survived", id)
	}

	remaining, err := store.Count(ctx, models.EntryTypeSearchResult)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
	for _, id := range []string{"search-old", "query-old", "chunk-old"} {
		_, err := store.Get(ctx, "default", id)
		assert.ErrorIs(t, err, vector.ErrNotFound, "entry %s should have been evicted", id)
	}
}

func TestSweep_CapShed(t *testing.T) {
	logger := common.GetLogger()
	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	config := common.NewDefaultConfig()
	config.Storage.MaxEntries = 2
	s := NewService(config, store, logger)
	ctx := context.Background()

	// All within TTL, but over the cap; the two day-old ones shed.
	seedEntry(t, store, "recent-1", models.EntryTypeCrawlChunk, time.Hour)
	seedEntry(t, store, "aging-1", models.EntryTypeCrawlChunk, 36*time.Hour)
	seedEntry(t, store, "aging-2", models.EntryTypeCrawlChunk, 48*time.Hour)

	result, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Shed)

	_, err = store.Get(ctx, "default", "recent-1")
	assert.NoError(t, err)
}

func TestFlushAll(t *testing.T) {
	s, store := newFixture(t)
	ctx := context.Background()

	seedEntry(t, store, "a", models.EntryTypeSearchResult, 0)
	seedEntry(t, store, "b", models.EntryTypeQueryCache, time.Minute)

	deleted, err := s.FlushAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStart_InvalidSchedule(t *testing.T) {
	logger := common.GetLogger()
	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	config := common.NewDefaultConfig()
	config.Eviction.Schedule = "not-a-schedule"
	s := NewService(config, store, logger)

	err = s.Start(context.Background())
	require.Error(t, err)
}

func TestStart_DisabledSweeper(t *testing.T) {
	s, _ := newFixture(t)
	s.config.Eviction.DisableSweeper = true
	assert.NoError(t, s.Start(context.Background()))
	s.Stop()
}
