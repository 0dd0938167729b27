// -----------------------------------------------------------------------
// Search Handler - web search with the semantic cache in front of the
// live provider
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/namespace"
	"github.com/noeticlabs/websearch/internal/services/search"
)

// SearchHandler serves /api/v1/search.
type SearchHandler struct {
	search     *search.Service
	namespaces *namespace.Resolver
	logger     arbor.ILogger
}

// NewSearchHandler creates the search handler.
func NewSearchHandler(searchSvc *search.Service, namespaces *namespace.Resolver, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		search:     searchSvc,
		namespaces: namespaces,
		logger:     logger,
	}
}

type searchRequestBody struct {
	models.SearchRequest
	Namespace string `json:"namespace,omitempty"`
}

// SearchHandler handles POST /api/v1/search.
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body searchRequestBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	resp, err := h.search.Search(r.Context(), &body.SearchRequest, ns)
	if err != nil {
		h.logger.Error().Err(err).Str("query", body.Query).Msg("Search failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
