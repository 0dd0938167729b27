package interfaces

import (
	"context"

	"github.com/noeticlabs/websearch/internal/models"
)

// VectorStore is a durable nearest-neighbor index over namespaced, typed
// entries. Writes are serialized; each returns only after the commit is
// durable, and subsequent reads in the same process observe it.
type VectorStore interface {
	// Upsert replaces any entry with the same (namespace, id) and commits.
	Upsert(ctx context.Context, entry *models.VectorEntry) error

	// UpsertBatch commits the whole batch at once.
	UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error

	// Get returns the entry or ErrNotFound.
	Get(ctx context.Context, namespace, id string) (*models.VectorEntry, error)

	// Delete removes one entry; deleting an absent id is not an error.
	Delete(ctx context.Context, namespace, id string) error

	// DeleteBatch removes a set of ids from one namespace in a single
	// commit.
	DeleteBatch(ctx context.Context, namespace string, ids []string) error

	// Search returns up to topK matches with similarity >= threshold,
	// strictly descending by score with ties broken by id. A non-empty
	// namespace restricts the candidate set before the KNN query.
	Search(ctx context.Context, queryVector []float32, topK int, threshold float64, namespace string, filter *models.MetadataFilter) ([]models.VectorMatch, error)

	// DeleteByMetadata removes every entry matching the filter and returns
	// the number removed.
	DeleteByMetadata(ctx context.Context, filter *models.MetadataFilter) (int, error)

	// Count returns the number of live entries, optionally per entry type.
	Count(ctx context.Context, entryType string) (int, error)

	// Promote copies all live entries of the agent tier into the shared
	// tier, replacing by id. Only available in agent mode.
	Promote(ctx context.Context) (int, error)

	// Close commits and releases index files.
	Close() error
}
