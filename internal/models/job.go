package models

import "time"

// JobState is the lifecycle state of an async batch job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateCancelled JobState = "cancelled"
	JobStateFailed    JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateCancelled || s == JobStateFailed
}

// JobError records one failed URL within a batch.
type JobError struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// JobStatus is an immutable snapshot of a batch crawl job. Crawled, Failed
// and Chunked all count pages.
type JobStatus struct {
	ID        string        `json:"id"`
	State     JobState      `json:"state"`
	TotalURLs int           `json:"total_urls"`
	Crawled   int           `json:"crawled"`
	Failed    int           `json:"failed"`
	Chunked   int           `json:"chunked"`
	Errors    []JobError    `json:"errors,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// BatchCrawlRequest describes an async batch: either explicit URLs or a
// domain to discover via its sitemap. AutoChunk nil means "use the
// configured default", which is on.
type BatchCrawlRequest struct {
	URLs           []string `json:"urls,omitempty"`
	Domain         string   `json:"domain,omitempty"`
	FetchMode      string   `json:"fetch_mode,omitempty"`
	ChunkStrategy  string   `json:"chunk_strategy,omitempty"`
	MaxConcurrency int      `json:"max_concurrency,omitempty"`
	RateLimitMs    int      `json:"rate_limit_ms,omitempty"`
	PathFilter     string   `json:"path_filter,omitempty"`
	MaxURLs        int      `json:"max_urls,omitempty"`
	AutoChunk      *bool    `json:"auto_chunk,omitempty"`
	Namespace      string   `json:"namespace,omitempty"`
}

// EffectiveAutoChunk resolves the tri-state flag against the configured
// default.
func (r *BatchCrawlRequest) EffectiveAutoChunk(fallback bool) bool {
	if r.AutoChunk == nil {
		return fallback
	}
	return *r.AutoChunk
}

// BatchCrawlResult carries the final counters of a completed batch. Chunked
// counts pages whose content was stored, not individual chunks.
type BatchCrawlResult struct {
	TotalURLs int           `json:"total_urls"`
	Crawled   int           `json:"crawled"`
	Failed    int           `json:"failed"`
	Chunked   int           `json:"chunked"`
	Errors    []JobError    `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}
