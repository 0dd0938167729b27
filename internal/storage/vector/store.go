// -----------------------------------------------------------------------
// Vector Store - chromem-go persistent KNN index paired with a badgerhold
// catalog, guarded by a file lock so only one process owns the index
// -----------------------------------------------------------------------

package vector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/gofrs/flock"
	"github.com/philippgille/chromem-go"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// ErrNotFound is returned for lookups of absent (namespace, id) pairs.
var ErrNotFound = errors.New("vector entry not found")

// ErrLocked is returned when another process holds the index lock.
var ErrLocked = errors.New("index is locked by another process")

// ErrReadOnly is returned for mutations on a read-only tier.
var ErrReadOnly = errors.New("vector store is read-only")

const collectionName = "entries"

// Reserved metadata keys in the chromem document; user metadata keys are
// stored under a prefix to avoid collisions with these.
const (
	metaNamespace  = "namespace"
	metaEntryType  = "entry_type"
	metaCreatedAt  = "created_at"
	userMetaPrefix = "m:"
)

// Store implements a durable single-tier vector index. Writes serialize
// under a mutex; the catalog and the chromem collection are updated
// together, catalog last so a crash can only leave an orphan vector that
// the next upsert or sweep repairs.
type Store struct {
	dir     string
	db      *chromem.DB
	col     *chromem.Collection
	catalog *catalog
	lock    *flock.Flock // nil on a read-only store
	logger  arbor.ILogger

	readOnly bool
	mu       sync.Mutex
	closed   bool
}

var _ interfaces.VectorStore = (*Store)(nil)

// Open creates or opens the index rooted at dir. The directory holds the
// chromem collection, the catalog and the lock file.
func Open(dir string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory %s: %w", dir, err)
	}

	lock := flock.New(lockPath(dir))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	s, err := open(dir, logger, false)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

// OpenReadOnly opens the index without the process lock, for tiers shared
// between concurrent agents. Mutations return ErrReadOnly; the snapshot
// does not see writes made by other processes after the open.
func OpenReadOnly(dir string, logger arbor.ILogger) (*Store, error) {
	return open(dir, logger, true)
}

// open builds the store. The caller handles locking: writable opens hold
// the index lock, read-only opens hold nothing and bypass badger's own
// directory lock so a locked writer can coexist with readers.
func open(dir string, logger arbor.ILogger, readOnly bool) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory %s: %w", dir, err)
	}

	if !readOnly {
		// Holding the process lock makes any leftover write.lock from a
		// crashed run stale; clear them before opening the index.
		clearStaleLocks(dir, logger)
	}

	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), true)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index at %s: %w", dir, err)
	}

	// Embeddings are always precomputed by the embedder service; chromem
	// must never compute one itself.
	col, err := db.GetOrCreateCollection(collectionName, nil, rejectEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	cat, err := openCatalog(filepath.Join(dir, "catalog"), readOnly)
	if err != nil {
		return nil, err
	}

	return &Store{
		dir:      dir,
		db:       db,
		col:      col,
		catalog:  cat,
		logger:   logger,
		readOnly: readOnly,
	}, nil
}

func lockPath(dir string) string {
	return filepath.Join(dir, "index.lock")
}

func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding must be precomputed")
}

// clearStaleLocks removes write.lock files left behind by a crashed
// process. Only lock files are touched, never index segments.
func clearStaleLocks(dir string, logger arbor.ILogger) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "write.lock" {
			return nil
		}
		if removeErr := os.Remove(path); removeErr != nil {
			logger.Warn().Err(removeErr).Str("path", path).Msg("Failed to remove stale write lock")
		} else {
			logger.Info().Str("path", path).Msg("Removed stale write lock")
		}
		return nil
	})
}

// Upsert replaces any entry with the same (namespace, id) and commits.
func (s *Store) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	return s.UpsertBatch(ctx, []*models.VectorEntry{entry})
}

// UpsertBatch commits the whole batch under one write lock.
func (s *Store) UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if s.readOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("vector store is closed")
	}

	docs := make([]chromem.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.ID == "" {
			return errors.New("vector entry requires an id")
		}
		if len(entry.Vector) == 0 {
			return fmt.Errorf("vector entry %s requires an embedding", entry.ID)
		}
		entry.Normalize()

		key := entryKey(entry.Namespace, entry.ID)
		// Replace-by-key: chromem AddDocuments overwrites same-ID docs,
		// but delete first keeps the collection count honest.
		_ = s.col.Delete(ctx, nil, nil, key)

		docs = append(docs, chromem.Document{
			ID:        key,
			Content:   entry.Content,
			Embedding: entry.Vector,
			Metadata:  documentMetadata(entry),
		})
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	for _, entry := range entries {
		if err := s.catalog.put(entry); err != nil {
			return fmt.Errorf("failed to update catalog for %s: %w", entry.ID, err)
		}
	}
	return nil
}

func documentMetadata(entry *models.VectorEntry) map[string]string {
	meta := map[string]string{
		metaNamespace: entry.Namespace,
		metaEntryType: entry.EntryType,
		metaCreatedAt: strconv.FormatInt(entry.CreatedAt.UnixNano(), 10),
	}
	for k, v := range entry.Metadata {
		meta[userMetaPrefix+k] = v
	}
	return meta
}

// Get returns the entry or ErrNotFound.
func (s *Store) Get(ctx context.Context, namespace, id string) (*models.VectorEntry, error) {
	if namespace == "" {
		namespace = models.DefaultNamespace
	}

	record, err := s.catalog.get(namespace, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.col.GetByID(ctx, entryKey(namespace, id))
	if err != nil {
		return nil, ErrNotFound
	}

	return &models.VectorEntry{
		ID:        id,
		Vector:    doc.Embedding,
		Content:   doc.Content,
		EntryType: record.EntryType,
		Namespace: namespace,
		CreatedAt: record.createdAt(),
		Metadata:  record.Metadata,
	}, nil
}

// Delete removes one entry; deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, namespace, id string) error {
	return s.DeleteBatch(ctx, namespace, []string{id})
}

// DeleteBatch removes a set of ids from one namespace under a single write
// lock.
func (s *Store) DeleteBatch(ctx context.Context, namespace string, ids []string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if namespace == "" {
		namespace = models.DefaultNamespace
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		_ = s.col.Delete(ctx, nil, nil, entryKey(namespace, id))
		if err := s.catalog.delete(namespace, id); err != nil {
			return err
		}
	}
	return nil
}

// Search runs the KNN query with a namespace pre-filter and applies the
// threshold and metadata filter. Results are strictly descending by score
// with ties broken by id.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, threshold float64, namespace string, filter *models.MetadataFilter) ([]models.VectorMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	available, err := s.candidateCount(namespace)
	if err != nil {
		return nil, err
	}
	if available == 0 {
		return []models.VectorMatch{}, nil
	}

	// Over-fetch when a post-filter can discard candidates.
	nResults := topK
	if filter != nil {
		nResults = topK * 4
	}
	if nResults > available {
		nResults = available
	}

	var where map[string]string
	if namespace != "" {
		where = map[string]string{metaNamespace: namespace}
	}

	results, err := s.col.QueryEmbedding(ctx, queryVector, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	matches := make([]models.VectorMatch, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if score < threshold {
			continue
		}
		ns, id := splitKey(r.ID)
		if filter != nil {
			record, err := s.catalog.get(ns, id)
			if err != nil || !record.matches(filter) {
				continue
			}
		}
		matches = append(matches, models.VectorMatch{
			ID:       id,
			Score:    score,
			Content:  r.Content,
			Metadata: userMetadata(r.Metadata),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) candidateCount(namespace string) (int, error) {
	if namespace == "" {
		return s.col.Count(), nil
	}
	return s.catalog.countNamespace(namespace)
}

func splitKey(key string) (namespace, id string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return models.DefaultNamespace, key
}

func userMetadata(meta map[string]string) map[string]string {
	var out map[string]string
	for k, v := range meta {
		if len(k) > len(userMetaPrefix) && k[:len(userMetaPrefix)] == userMetaPrefix {
			if out == nil {
				out = make(map[string]string)
			}
			out[k[len(userMetaPrefix):]] = v
		}
	}
	return out
}

// DeleteByMetadata removes every entry matching the filter and returns the
// number removed. The catalog drives the scan; chromem only sees id
// deletes.
func (s *Store) DeleteByMetadata(ctx context.Context, filter *models.MetadataFilter) (int, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.catalog.find(filter)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, record := range records {
		_ = s.col.Delete(ctx, nil, nil, record.Key)
		if err := s.catalog.delete(record.Namespace, record.ID); err != nil {
			return deleted, err
		}
		deleted++
	}

	if deleted > 0 {
		if err := s.catalog.gc(); err != nil {
			s.logger.Warn().Err(err).Msg("Catalog value-log GC failed")
		}
	}
	return deleted, nil
}

// Count returns the number of live entries, optionally per entry type.
func (s *Store) Count(ctx context.Context, entryType string) (int, error) {
	return s.catalog.count(entryType)
}

// Promote is only meaningful on the two-tier store.
func (s *Store) Promote(ctx context.Context) (int, error) {
	return 0, errors.New("promote requires agent mode")
}

// allEntries streams every live entry, used by the two-tier promote.
func (s *Store) allEntries(ctx context.Context) ([]*models.VectorEntry, error) {
	records, err := s.catalog.all()
	if err != nil {
		return nil, err
	}

	entries := make([]*models.VectorEntry, 0, len(records))
	for _, record := range records {
		entry, err := s.Get(ctx, record.Namespace, record.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close releases the catalog and the index lock. chromem persists every
// write as it happens, so there is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.catalog.close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}

	if s.logger != nil {
		s.logger.Debug().Str("dir", s.dir).Msg("Vector store closed")
	}
	return err
}
