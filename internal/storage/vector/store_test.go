package vector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
)

// unit returns an L2-normalized 4-dim vector.
func unit(a, b, c, d float32) []float32 {
	v := []float32{a, b, c, d}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir(), common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entry(id, namespace, entryType string, vec []float32, age time.Duration) *models.VectorEntry {
	return &models.VectorEntry{
		ID:        id,
		Vector:    vec,
		Content:   "content for " + id,
		EntryType: entryType,
		Namespace: namespace,
		CreatedAt: time.Now().Add(-age),
	}
}

func TestStore_UpsertGetRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := entry("doc-1", "proj-a", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0)
	e.Metadata = map[string]string{"query": "nginx config"}
	require.NoError(t, store.Upsert(ctx, e))

	got, err := store.Get(ctx, "proj-a", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, "content for doc-1", got.Content)
	assert.Equal(t, models.EntryTypeSearchResult, got.EntryType)
	assert.Equal(t, "nginx config", got.Metadata["query"])
}

func TestStore_GetMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "proj-a", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpsertReplacesSameKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := entry("doc-1", "default", models.EntryTypeQueryCache, unit(1, 0, 0, 0), 0)
	require.NoError(t, store.Upsert(ctx, first))

	second := entry("doc-1", "default", models.EntryTypeQueryCache, unit(0, 1, 0, 0), 0)
	second.Content = "replaced"
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, "default", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.Content)

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_EmptyNamespaceDefaults(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := entry("doc-1", "", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0)
	require.NoError(t, store.Upsert(ctx, e))

	got, err := store.Get(ctx, models.DefaultNamespace, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNamespace, got.Namespace)
}

func TestStore_SearchThresholdAndOrdering(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("exact", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0),
		entry("close", "default", models.EntryTypeSearchResult, unit(0.9, 0.1, 0, 0), 0),
		entry("far", "default", models.EntryTypeSearchResult, unit(0, 0, 1, 0), 0),
	}))

	matches, err := store.Search(ctx, unit(1, 0, 0, 0), 10, 0.5, "default", nil)
	require.NoError(t, err)

	require.Len(t, matches, 2, "orthogonal entry must fall below the threshold")
	assert.Equal(t, "exact", matches[0].ID)
	assert.Equal(t, "close", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestStore_SearchNamespaceIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("a-1", "proj-a", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0),
		entry("b-1", "proj-b", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0),
	}))

	matches, err := store.Search(ctx, unit(1, 0, 0, 0), 10, 0.0, "proj-a", nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a-1", matches[0].ID)
}

func TestStore_SearchEmptyIndex(t *testing.T) {
	store := openTestStore(t)
	matches, err := store.Search(context.Background(), unit(1, 0, 0, 0), 5, 0.9, "default", nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestStore_SearchTopKClamp(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, entry("only", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0)))

	// topK larger than the collection must not error.
	matches, err := store.Search(ctx, unit(1, 0, 0, 0), 50, 0.0, "default", nil)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestStore_DeleteByMetadata_TTLSweep(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("old-search", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 25*time.Hour),
		entry("new-search", "default", models.EntryTypeSearchResult, unit(0, 1, 0, 0), time.Hour),
		entry("old-chunk", "default", models.EntryTypeCrawlChunk, unit(0, 0, 1, 0), 25*time.Hour),
	}))

	deleted, err := store.DeleteByMetadata(ctx, &models.MetadataFilter{
		EntryType:     models.EntryTypeSearchResult,
		CreatedBefore: time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Get(ctx, "default", "old-search")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "default", "new-search")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "default", "old-chunk")
	assert.NoError(t, err)
}

func TestStore_DeleteAbsentIsNotAnError(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "default", "ghost"))
}

func TestStore_DeleteBatch(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("d-1", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0),
		entry("d-2", "default", models.EntryTypeSearchResult, unit(0, 1, 0, 0), 0),
		entry("keep", "default", models.EntryTypeSearchResult, unit(0, 0, 1, 0), 0),
	}))

	require.NoError(t, store.DeleteBatch(ctx, "default", []string{"d-1", "d-2", "ghost"}))

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Get(ctx, "default", "keep")
	assert.NoError(t, err)
}

func TestStore_CountByEntryType(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("s1", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0),
		entry("s2", "default", models.EntryTypeSearchResult, unit(0, 1, 0, 0), 0),
		entry("c1", "default", models.EntryTypeCrawlChunk, unit(0, 0, 1, 0), 0),
	}))

	total, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	searches, err := store.Count(ctx, models.EntryTypeSearchResult)
	require.NoError(t, err)
	assert.Equal(t, 2, searches)
}

func TestStore_SecondOpenFailsWhileLocked(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir, common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = Open(dir, common.GetLogger())
	assert.ErrorIs(t, err, ErrLocked)
}

func TestStore_ClearsStaleWriteLocks(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "chromem")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	stale := filepath.Join(nested, "write.lock")
	require.NoError(t, os.WriteFile(stale, nil, 0o644))

	store, err := Open(dir, common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

// seedShared writes entries into a shared index directory before any
// agent opens it read-only.
func seedShared(t *testing.T, dir string, entries ...*models.VectorEntry) {
	t.Helper()
	store, err := Open(dir, common.GetLogger())
	require.NoError(t, err)
	require.NoError(t, store.UpsertBatch(context.Background(), entries))
	require.NoError(t, store.Close())
}

func TestTwoTier_AgentWritesAndUnionReads(t *testing.T) {
	ctx := context.Background()
	sharedDir := t.TempDir()
	seedShared(t, sharedDir, entry("shared-1", "default", models.EntryTypeSearchResult, unit(0, 1, 0, 0), 0))

	store, err := OpenTwoTier(t.TempDir(), sharedDir, common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	// Agent write lands in the agent tier only.
	require.NoError(t, store.Upsert(ctx, entry("agent-1", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0)))
	_, err = store.shared.Get(ctx, "default", "agent-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Reads see both tiers.
	matches, err := store.Search(ctx, unit(1, 1, 0, 0), 10, 0.0, "default", nil)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestTwoTier_AgentTierWinsOnConflict(t *testing.T) {
	ctx := context.Background()
	sharedDir := t.TempDir()

	stale := entry("doc-1", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), time.Hour)
	stale.Content = "stale shared copy"
	seedShared(t, sharedDir, stale)

	store, err := OpenTwoTier(t.TempDir(), sharedDir, common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	fresh := entry("doc-1", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0)
	fresh.Content = "fresh agent copy"
	require.NoError(t, store.Upsert(ctx, fresh))

	got, err := store.Get(ctx, "default", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh agent copy", got.Content)

	matches, err := store.Search(ctx, unit(1, 0, 0, 0), 10, 0.0, "default", nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "fresh agent copy", matches[0].Content)
}

func TestTwoTier_PromoteCopiesToShared(t *testing.T) {
	ctx := context.Background()
	store, err := OpenTwoTier(t.TempDir(), t.TempDir(), common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.UpsertBatch(ctx, []*models.VectorEntry{
		entry("p-1", "default", models.EntryTypeCrawlChunk, unit(1, 0, 0, 0), 0),
		entry("p-2", "default", models.EntryTypeCrawlChunk, unit(0, 1, 0, 0), 0),
	}))

	promoted, err := store.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)

	got, err := store.shared.Get(ctx, "default", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "content for p-1", got.Content)
}

func TestTwoTier_ConcurrentAgentsShareOneIndex(t *testing.T) {
	ctx := context.Background()
	sharedDir := t.TempDir()

	first, err := OpenTwoTier(t.TempDir(), sharedDir, common.GetLogger())
	require.NoError(t, err)
	defer first.Close()

	// A second agent over the same shared index must open while the first
	// is still running; the shared tier takes no exclusive lock.
	second, err := OpenTwoTier(t.TempDir(), sharedDir, common.GetLogger())
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.Upsert(ctx, entry("f-1", "default", models.EntryTypeCrawlChunk, unit(1, 0, 0, 0), 0)))
	promoted, err := first.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	// The promoter's own reads include the promoted entry.
	got, err := first.shared.Get(ctx, "default", "f-1")
	require.NoError(t, err)
	assert.Equal(t, "content for f-1", got.Content)

	// An agent started after the promote sees it too.
	third, err := OpenTwoTier(t.TempDir(), sharedDir, common.GetLogger())
	require.NoError(t, err)
	defer third.Close()
	_, err = third.Get(ctx, "default", "f-1")
	assert.NoError(t, err)
}

func TestTwoTier_SharedTierRejectsDirectWrites(t *testing.T) {
	store, err := OpenTwoTier(t.TempDir(), t.TempDir(), common.GetLogger())
	require.NoError(t, err)
	defer store.Close()

	err = store.shared.Upsert(context.Background(), entry("x", "default", models.EntryTypeSearchResult, unit(1, 0, 0, 0), 0))
	assert.ErrorIs(t, err, ErrReadOnly)
}
