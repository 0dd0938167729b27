package models

import "time"

// Entry types with a TTL policy attached. Callers may also supply their own
// type strings; unknown types are kept until the max-entries cap sheds them.
const (
	EntryTypeSearchResult = "search_result"
	EntryTypeQueryCache   = "query_cache"
	EntryTypeCrawlChunk   = "crawl_chunk"
)

// DefaultNamespace is the partition used for anonymous callers and for
// legacy entries written before namespaces existed.
const DefaultNamespace = "default"

// VectorEntry is the unit stored in the semantic index. (namespace, id) is
// unique; upsert replaces the whole record.
type VectorEntry struct {
	ID        string            `json:"id"`
	Vector    []float32         `json:"vector"`
	Content   string            `json:"content"`
	EntryType string            `json:"entry_type"`
	Namespace string            `json:"namespace"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Normalize applies the defaulting rules: empty namespace becomes
// DefaultNamespace and a zero CreatedAt becomes now.
func (e *VectorEntry) Normalize() {
	if e.Namespace == "" {
		e.Namespace = DefaultNamespace
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
}

// VectorMatch is one KNN hit. Score is cosine similarity; higher is more
// similar.
type VectorMatch struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MetadataFilter is a conjunction of equality constraints plus optional
// created-at bounds. A zero time means the bound is absent.
type MetadataFilter struct {
	Namespace     string            `json:"namespace,omitempty"`
	EntryType     string            `json:"entry_type,omitempty"`
	Equals        map[string]string `json:"equals,omitempty"`
	CreatedAfter  time.Time         `json:"created_after,omitempty"`
	CreatedBefore time.Time         `json:"created_before,omitempty"`
}

// Matches reports whether the entry satisfies every constraint.
func (f *MetadataFilter) Matches(e *VectorEntry) bool {
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	if f.EntryType != "" && e.EntryType != f.EntryType {
		return false
	}
	for k, v := range f.Equals {
		if e.Metadata[k] != v {
			return false
		}
	}
	if !f.CreatedAfter.IsZero() && !e.CreatedAt.After(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && !e.CreatedAt.Before(f.CreatedBefore) {
		return false
	}
	return true
}
