// -----------------------------------------------------------------------
// Crawl Handler - single-page crawls and content chunking
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/crawler"
	"github.com/noeticlabs/websearch/internal/services/namespace"
)

// CrawlHandler serves /api/v1/crawl and /api/v1/chunk.
type CrawlHandler struct {
	crawls     *crawler.Service
	chunks     *chunks.Service
	namespaces *namespace.Resolver
	logger     arbor.ILogger
}

// NewCrawlHandler creates the crawl handler.
func NewCrawlHandler(crawls *crawler.Service, chunkSvc *chunks.Service, namespaces *namespace.Resolver, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{
		crawls:     crawls,
		chunks:     chunkSvc,
		namespaces: namespaces,
		logger:     logger,
	}
}

type crawlRequestBody struct {
	crawler.CrawlRequest
	Namespace string `json:"namespace,omitempty"`
}

// CrawlHandler handles POST /api/v1/crawl.
func (h *CrawlHandler) CrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body crawlRequestBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Fetch.URL == "" {
		WriteError(w, http.StatusBadRequest, "fetch.url is required")
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	resp, err := h.crawls.Crawl(r.Context(), &body.CrawlRequest, ns)
	if err != nil {
		h.logger.Error().Err(err).Str("url", body.Fetch.URL).Msg("Crawl failed")
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

type chunkRequestBody struct {
	chunks.Request
	Namespace string `json:"namespace,omitempty"`
}

// ChunkHandler handles POST /api/v1/chunk.
func (h *CrawlHandler) ChunkHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body chunkRequestBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Content == "" {
		WriteError(w, http.StatusBadRequest, "content is required")
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	resp, err := h.chunks.Process(r.Context(), &body.Request, ns)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
