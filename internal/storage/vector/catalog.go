// -----------------------------------------------------------------------
// Catalog - badgerhold side-index over vector entries. chromem serves the
// KNN queries; the catalog serves everything chromem cannot: range scans
// by creation time, counts and metadata sweeps for eviction.
// -----------------------------------------------------------------------

package vector

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/noeticlabs/websearch/internal/models"
)

// CatalogRecord mirrors one vector entry without its embedding or content.
type CatalogRecord struct {
	Key       string `badgerhold:"key"` // namespace + "/" + id
	ID        string
	Namespace string `badgerholdIndex:"Namespace"`
	EntryType string `badgerholdIndex:"EntryType"`
	CreatedAt int64  // Unix nanoseconds
	Metadata  map[string]string
}

func (r *CatalogRecord) createdAt() time.Time {
	return time.Unix(0, r.CreatedAt)
}

// matches applies a metadata filter to the catalog record.
func (r *CatalogRecord) matches(filter *models.MetadataFilter) bool {
	if filter == nil {
		return true
	}
	shadow := &models.VectorEntry{
		ID:        r.ID,
		Namespace: r.Namespace,
		EntryType: r.EntryType,
		CreatedAt: r.createdAt(),
		Metadata:  r.Metadata,
	}
	return filter.Matches(shadow)
}

type catalog struct {
	store *badgerhold.Store
}

func openCatalog(dir string, readOnly bool) (*catalog, error) {
	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil
	if readOnly {
		// Readers coordinate through the index flock, not badger's
		// directory lock; bypassing it lets a promote open the catalog
		// writable while read snapshots are still held.
		opts.ReadOnly = true
		opts.BypassLockGuard = true
	}

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog at %s: %w", dir, err)
	}
	return &catalog{store: store}, nil
}

func entryKey(namespace, id string) string {
	return namespace + "/" + id
}

func (c *catalog) put(entry *models.VectorEntry) error {
	record := &CatalogRecord{
		Key:       entryKey(entry.Namespace, entry.ID),
		ID:        entry.ID,
		Namespace: entry.Namespace,
		EntryType: entry.EntryType,
		CreatedAt: entry.CreatedAt.UnixNano(),
		Metadata:  entry.Metadata,
	}
	return c.store.Upsert(record.Key, record)
}

func (c *catalog) get(namespace, id string) (*CatalogRecord, error) {
	var record CatalogRecord
	err := c.store.Get(entryKey(namespace, id), &record)
	if err == badgerhold.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *catalog) delete(namespace, id string) error {
	err := c.store.Delete(entryKey(namespace, id), CatalogRecord{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	return err
}

// find returns records matching the filter. Namespace and entry type use
// the badgerhold indexes; remaining constraints filter in memory.
func (c *catalog) find(filter *models.MetadataFilter) ([]CatalogRecord, error) {
	var records []CatalogRecord
	if err := c.store.Find(&records, c.query(filter)); err != nil {
		return nil, err
	}
	if filter == nil {
		return records, nil
	}

	matched := records[:0]
	for _, record := range records {
		if record.matches(filter) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

func (c *catalog) query(filter *models.MetadataFilter) *badgerhold.Query {
	if filter == nil {
		return nil
	}
	if filter.Namespace != "" {
		return badgerhold.Where("Namespace").Eq(filter.Namespace).Index("Namespace")
	}
	if filter.EntryType != "" {
		return badgerhold.Where("EntryType").Eq(filter.EntryType).Index("EntryType")
	}
	return nil
}

func (c *catalog) count(entryType string) (int, error) {
	var query *badgerhold.Query
	if entryType != "" {
		query = badgerhold.Where("EntryType").Eq(entryType).Index("EntryType")
	}
	n, err := c.store.Count(CatalogRecord{}, query)
	return int(n), err
}

func (c *catalog) countNamespace(namespace string) (int, error) {
	n, err := c.store.Count(CatalogRecord{},
		badgerhold.Where("Namespace").Eq(namespace).Index("Namespace"))
	return int(n), err
}

func (c *catalog) all() ([]CatalogRecord, error) {
	var records []CatalogRecord
	if err := c.store.Find(&records, nil); err != nil {
		return nil, err
	}
	return records, nil
}

// gc reclaims badger value-log space after bulk deletes.
func (c *catalog) gc() error {
	for {
		err := c.store.Badger().RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c *catalog) close() error {
	return c.store.Close()
}
