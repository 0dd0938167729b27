// -----------------------------------------------------------------------
// Job Service - in-memory registry of async batch crawls with snapshot
// reads, context-based cancellation and completion events
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
)

// maxJobErrors bounds the per-job error list; a batch of thousands of
// dead URLs should not grow without limit.
const maxJobErrors = 50

// JobEvent is published on every job state or progress change.
type JobEvent struct {
	JobID  string           `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// EventFunc receives job events, used by the websocket feed.
type EventFunc func(JobEvent)

type job struct {
	mu        sync.Mutex
	id        string
	state     models.JobState
	totalURLs int
	crawled   int
	failed    int
	chunked   int
	errors    []models.JobError
	startedAt time.Time
	finished  time.Time
	cancel    context.CancelFunc
}

func (j *job) snapshot() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	elapsed := time.Since(j.startedAt)
	if !j.finished.IsZero() {
		elapsed = j.finished.Sub(j.startedAt)
	}
	return models.JobStatus{
		ID:        j.id,
		State:     j.state,
		TotalURLs: j.totalURLs,
		Crawled:   j.crawled,
		Failed:    j.failed,
		Chunked:   j.chunked,
		Errors:    append([]models.JobError(nil), j.errors...),
		StartedAt: j.startedAt,
		Elapsed:   elapsed,
	}
}

// JobService owns async batch crawls. Jobs live in memory only; a restart
// forgets them, which matches a local cache daemon.
type JobService struct {
	config  *common.Config
	batch   *BatchCrawler
	logger  arbor.ILogger
	mu      sync.RWMutex
	jobs    map[string]*job
	eventFn EventFunc
}

// NewJobService creates the registry.
func NewJobService(config *common.Config, batch *BatchCrawler, logger arbor.ILogger) *JobService {
	return &JobService{
		config: config,
		batch:  batch,
		logger: logger,
		jobs:   make(map[string]*job),
	}
}

// OnEvent registers the event sink. One sink is enough; the websocket hub
// fans out.
func (s *JobService) OnEvent(fn EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventFn = fn
}

func (s *JobService) publish(j *job) {
	s.mu.RLock()
	fn := s.eventFn
	s.mu.RUnlock()
	if fn != nil {
		fn(JobEvent{JobID: j.id, Status: j.snapshot()})
	}
}

// Start validates the request shape, registers a pending job and launches
// discovery plus the batch in the background. It returns the job id
// immediately; sitemap expansion happens inside the job.
func (s *JobService) Start(req *models.BatchCrawlRequest, namespace string) (string, error) {
	if len(req.URLs) == 0 && req.Domain == "" {
		return "", fmt.Errorf("batch crawl requires urls or a domain")
	}
	if req.PathFilter != "" {
		if _, err := regexp.Compile(req.PathFilter); err != nil {
			return "", fmt.Errorf("invalid path filter %q: %w", req.PathFilter, err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:        uuid.NewString(),
		state:     models.JobStatePending,
		totalURLs: len(req.URLs),
		startedAt: time.Now(),
		cancel:    cancel,
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", j.id).
		Int("urls", len(req.URLs)).
		Str("domain", req.Domain).
		Str("namespace", namespace).
		Msg("Batch crawl job accepted")

	go s.run(runCtx, j, req, namespace)
	return j.id, nil
}

func (s *JobService) run(ctx context.Context, j *job, req *models.BatchCrawlRequest, namespace string) {
	j.mu.Lock()
	j.state = models.JobStateRunning
	j.mu.Unlock()
	s.publish(j)

	urls, err := s.batch.ResolveURLs(ctx, req)
	if err == nil && len(urls) == 0 {
		err = fmt.Errorf("batch crawl resolved no URLs")
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", j.id).Msg("Batch crawl URL discovery failed")
		j.mu.Lock()
		j.finished = time.Now()
		if ctx.Err() == context.Canceled {
			j.state = models.JobStateCancelled
		} else {
			j.state = models.JobStateFailed
			j.errors = append(j.errors, models.JobError{URL: req.Domain, Reason: err.Error()})
		}
		j.mu.Unlock()
		s.publish(j)
		return
	}

	j.mu.Lock()
	j.totalURLs = len(urls)
	j.mu.Unlock()
	s.publish(j)

	progress := func(url string, chunksStored int, err error) {
		j.mu.Lock()
		if err != nil {
			j.failed++
			if len(j.errors) < maxJobErrors {
				j.errors = append(j.errors, models.JobError{URL: url, Reason: err.Error()})
			}
		} else {
			j.crawled++
			if chunksStored > 0 {
				j.chunked++
			}
		}
		j.mu.Unlock()
		s.publish(j)
	}

	_, err = s.batch.Run(ctx, urls, req, namespace, progress)

	j.mu.Lock()
	j.finished = time.Now()
	switch {
	case ctx.Err() == context.Canceled:
		j.state = models.JobStateCancelled
	case err != nil:
		j.state = models.JobStateFailed
	default:
		j.state = models.JobStateCompleted
	}
	state := j.state
	j.mu.Unlock()

	s.logger.Info().
		Str("job_id", j.id).
		Str("state", string(state)).
		Msg("Batch crawl job finished")
	s.publish(j)
}

// Get returns a snapshot of one job.
func (s *JobService) Get(id string) (models.JobStatus, error) {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return models.JobStatus{}, fmt.Errorf("unknown job %q", id)
	}
	return j.snapshot(), nil
}

// List returns snapshots of every known job.
func (s *JobService) List() []models.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Cancel stops a running job. Cancelling a terminal job is a no-op.
func (s *JobService) Cancel(id string) error {
	s.mu.RLock()
	j, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", id)
	}

	j.mu.Lock()
	terminal := j.state.Terminal()
	j.mu.Unlock()
	if terminal {
		return nil
	}

	j.cancel()
	return nil
}

// Delete removes a job from the registry, cancelling it first if it is
// still running. The run goroutine keeps its own pointer, so a cancelled
// job still publishes its terminal event after removal.
func (s *JobService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("unknown job %q", id)
	}
	j.mu.Lock()
	terminal := j.state.Terminal()
	j.mu.Unlock()
	if !terminal {
		j.cancel()
	}
	delete(s.jobs, id)
	return nil
}
