// -----------------------------------------------------------------------
// Discovery Handler - sitemap expansion and breadth-first site mapping
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/services/mapper"
	"github.com/noeticlabs/websearch/internal/services/sitemap"
)

// DiscoveryHandler serves /api/v1/sitemap and /api/v1/map.
type DiscoveryHandler struct {
	sitemap *sitemap.Parser
	mapper  *mapper.Service
	logger  arbor.ILogger
}

// NewDiscoveryHandler creates the discovery handler.
func NewDiscoveryHandler(sitemapParser *sitemap.Parser, mapperSvc *mapper.Service, logger arbor.ILogger) *DiscoveryHandler {
	return &DiscoveryHandler{
		sitemap: sitemapParser,
		mapper:  mapperSvc,
		logger:  logger,
	}
}

// SitemapHandler handles POST /api/v1/sitemap.
func (h *DiscoveryHandler) SitemapHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req sitemap.Request
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.sitemap.Discover(r.Context(), &req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// MapHandler handles POST /api/v1/map.
func (h *DiscoveryHandler) MapHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req mapper.Request
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.URL == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.mapper.Map(r.Context(), &req)
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
