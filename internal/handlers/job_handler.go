// -----------------------------------------------------------------------
// Job Handler - async batch crawls: submit, inspect, cancel and delete
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/crawler"
	"github.com/noeticlabs/websearch/internal/services/namespace"
)

// JobHandler serves /api/v1/batch-crawl and /api/v1/jobs.
type JobHandler struct {
	jobs       *crawler.JobService
	namespaces *namespace.Resolver
	logger     arbor.ILogger
}

// NewJobHandler creates the job handler.
func NewJobHandler(jobs *crawler.JobService, namespaces *namespace.Resolver, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		jobs:       jobs,
		namespaces: namespaces,
		logger:     logger,
	}
}

// BatchCrawlHandler handles POST /api/v1/batch-crawl. It returns the job
// id immediately; progress streams over /ws or polls via /jobs/{id}.
func (h *JobHandler) BatchCrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body models.BatchCrawlRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	id, err := h.jobs.Start(&body, ns)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job_id": id,
	})
}

// JobsHandler handles /api/v1/jobs: GET lists every job, POST submits a
// batch crawl the same way /batch-crawl does.
func (h *JobHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"jobs": h.jobs.List(),
		})
	case http.MethodPost:
		h.BatchCrawlHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// JobRoutesHandler dispatches /api/v1/jobs/{id} by method: GET returns the
// snapshot, POST {id}/cancel cancels, DELETE removes the job (cancelling a
// still-running one first).
func (h *JobHandler) JobRoutesHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if rest == "" {
		WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	if r.Method == http.MethodPost && strings.HasSuffix(rest, "/cancel") {
		id := strings.TrimSuffix(rest, "/cancel")
		if err := h.jobs.Cancel(id); err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelling", "job_id": id})
		return
	}

	switch r.Method {
	case http.MethodGet:
		status, err := h.jobs.Get(rest)
		if err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, status)
	case http.MethodDelete:
		if err := h.jobs.Delete(rest); err != nil {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "job_id": rest})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
