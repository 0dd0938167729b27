// -----------------------------------------------------------------------
// Two-Tier Store - agent mode pairs a writable per-agent tier with the
// shared index; reads union both tiers, writes stay in the agent tier
// until an explicit promote copies them across
// -----------------------------------------------------------------------

package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// TwoTierStore layers an agent tier over the shared index. The agent tier
// wins on (namespace, id) conflicts, so an agent sees its own writes even
// when the shared index holds an older version of the same entry.
//
// The shared tier is opened read-only so any number of agent processes can
// run against one shared index; its flock is held only while a promote
// writes. The read snapshot is reopened after our own promote; promotes
// from other agents become visible on the next process start.
type TwoTierStore struct {
	agent     *Store
	sharedDir string
	logger    arbor.ILogger

	mu     sync.RWMutex
	shared *Store // nil when a reopen after promote failed
}

var _ interfaces.VectorStore = (*TwoTierStore)(nil)

// OpenTwoTier opens the exclusive agent tier and a read-only snapshot of
// the shared tier, initializing the shared index on first use.
func OpenTwoTier(agentDir, sharedDir string, logger arbor.ILogger) (*TwoTierStore, error) {
	agent, err := Open(agentDir, logger)
	if err != nil {
		return nil, err
	}
	if err := ensureSharedIndex(sharedDir, logger); err != nil {
		agent.Close()
		return nil, err
	}
	shared, err := OpenReadOnly(sharedDir, logger)
	if err != nil {
		agent.Close()
		return nil, err
	}
	return &TwoTierStore{agent: agent, sharedDir: sharedDir, shared: shared, logger: logger}, nil
}

// ensureSharedIndex creates the shared index files if the directory is
// fresh; a read-only catalog open needs an existing manifest. The shared
// lock serializes first-use initialization between agents.
func ensureSharedIndex(dir string, logger arbor.ILogger) error {
	manifest := filepath.Join(dir, "catalog", "MANIFEST")
	if _, err := os.Stat(manifest); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create shared index directory %s: %w", dir, err)
	}

	lock := flock.New(lockPath(dir))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock shared index for initialization: %w", err)
	}
	defer lock.Unlock()

	if _, err := os.Stat(manifest); err == nil {
		return nil
	}
	s, err := open(dir, logger, false)
	if err != nil {
		return fmt.Errorf("failed to initialize shared index at %s: %w", dir, err)
	}
	return s.Close()
}

// sharedSnapshot returns the current shared read tier, which may be nil.
func (t *TwoTierStore) sharedSnapshot() *Store {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shared
}

// Upsert writes to the agent tier.
func (t *TwoTierStore) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	return t.agent.Upsert(ctx, entry)
}

// UpsertBatch writes to the agent tier.
func (t *TwoTierStore) UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error {
	return t.agent.UpsertBatch(ctx, entries)
}

// Get checks the agent tier first, then the shared tier.
func (t *TwoTierStore) Get(ctx context.Context, namespace, id string) (*models.VectorEntry, error) {
	entry, err := t.agent.Get(ctx, namespace, id)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	shared := t.sharedSnapshot()
	if shared == nil {
		return nil, err
	}
	return shared.Get(ctx, namespace, id)
}

// Delete removes from the agent tier only; shared entries outlive agents.
func (t *TwoTierStore) Delete(ctx context.Context, namespace, id string) error {
	return t.agent.Delete(ctx, namespace, id)
}

// DeleteBatch removes from the agent tier only.
func (t *TwoTierStore) DeleteBatch(ctx context.Context, namespace string, ids []string) error {
	return t.agent.DeleteBatch(ctx, namespace, ids)
}

// Search unions both tiers. Duplicate ids keep the agent-tier match.
func (t *TwoTierStore) Search(ctx context.Context, queryVector []float32, topK int, threshold float64, namespace string, filter *models.MetadataFilter) ([]models.VectorMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	agentMatches, err := t.agent.Search(ctx, queryVector, topK, threshold, namespace, filter)
	if err != nil {
		return nil, err
	}
	var sharedMatches []models.VectorMatch
	if shared := t.sharedSnapshot(); shared != nil {
		sharedMatches, err = shared.Search(ctx, queryVector, topK, threshold, namespace, filter)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(agentMatches))
	merged := make([]models.VectorMatch, 0, len(agentMatches)+len(sharedMatches))
	for _, m := range agentMatches {
		seen[m.ID] = true
		merged = append(merged, m)
	}
	for _, m := range sharedMatches {
		if !seen[m.ID] {
			merged = append(merged, m)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// DeleteByMetadata sweeps the agent tier only.
func (t *TwoTierStore) DeleteByMetadata(ctx context.Context, filter *models.MetadataFilter) (int, error) {
	return t.agent.DeleteByMetadata(ctx, filter)
}

// Count sums both tiers. Entries present in both tiers count twice; the
// gauge is not de-duplicated.
func (t *TwoTierStore) Count(ctx context.Context, entryType string) (int, error) {
	agentCount, err := t.agent.Count(ctx, entryType)
	if err != nil {
		return 0, err
	}
	shared := t.sharedSnapshot()
	if shared == nil {
		return agentCount, nil
	}
	sharedCount, err := shared.Count(ctx, entryType)
	if err != nil {
		return 0, err
	}
	return agentCount + sharedCount, nil
}

// Promote copies every live agent-tier entry into the shared tier,
// replacing by (namespace, id), and returns the number copied. The shared
// flock is held for the write window only, then the read snapshot reopens
// so reads see the promoted entries. The agent tier keeps its entries;
// eviction clears them on their normal schedule.
func (t *TwoTierStore) Promote(ctx context.Context) (int, error) {
	entries, err := t.agent.allEntries(ctx)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The read snapshot closes before the writable open; badger will not
	// open writable over our own read-only handle.
	if t.shared != nil {
		t.shared.Close()
		t.shared = nil
	}

	upErr := t.writeShared(ctx, entries)

	shared, reopenErr := OpenReadOnly(t.sharedDir, t.logger)
	if reopenErr == nil {
		t.shared = shared
	}
	if upErr != nil {
		return 0, upErr
	}
	if reopenErr != nil {
		return 0, fmt.Errorf("promoted but failed to reopen shared index: %w", reopenErr)
	}

	t.logger.Info().Int("entries", len(entries)).Msg("Promoted agent entries to shared index")
	return len(entries), nil
}

// writeShared performs the locked write window of a promote.
func (t *TwoTierStore) writeShared(ctx context.Context, entries []*models.VectorEntry) error {
	lock := flock.New(lockPath(t.sharedDir))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock shared index: %w", err)
	}
	defer lock.Unlock()

	writable, err := open(t.sharedDir, t.logger, false)
	if err != nil {
		return fmt.Errorf("failed to open shared index for promote: %w", err)
	}
	upErr := writable.UpsertBatch(ctx, entries)
	if closeErr := writable.Close(); closeErr != nil && upErr == nil {
		upErr = closeErr
	}
	return upErr
}

// Close closes both tiers.
func (t *TwoTierStore) Close() error {
	err := t.agent.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shared != nil {
		if sharedErr := t.shared.Close(); sharedErr != nil && err == nil {
			err = sharedErr
		}
		t.shared = nil
	}
	return err
}
