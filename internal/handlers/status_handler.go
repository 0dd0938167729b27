// -----------------------------------------------------------------------
// Status Handler - health, version and the API catch-all
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
)

// StatusHandler serves the health and version endpoints.
type StatusHandler struct {
	config  *common.Config
	logger  arbor.ILogger
	started time.Time
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		config:  config,
		logger:  logger,
		started: time.Now(),
	}
}

// HealthHandler handles GET /api/v1/health.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(h.started).Round(time.Second).String(),
		"version": common.GetVersion(),
	})
}

// VersionHandler handles GET /api/v1/version.
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
	})
}

// NotFoundHandler answers unmatched /api/ routes with JSON instead of the
// default HTML error page.
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "unknown API route "+r.URL.Path)
}
