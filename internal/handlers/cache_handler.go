// -----------------------------------------------------------------------
// Cache Handler - direct semantic-cache access: store, query, flush,
// evict and promote
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/services/cache"
	"github.com/noeticlabs/websearch/internal/services/eviction"
	"github.com/noeticlabs/websearch/internal/services/fetcher"
	"github.com/noeticlabs/websearch/internal/services/namespace"
)

// CacheHandler serves /api/v1/cache and its subroutes.
type CacheHandler struct {
	cache      *cache.Service
	eviction   *eviction.Service
	pool       *fetcher.BrowserPool
	fetchers   *fetcher.Resolver
	namespaces *namespace.Resolver
	logger     arbor.ILogger
}

// NewCacheHandler creates the cache handler. The pool and fetch resolver
// are only read for the stats gauges.
func NewCacheHandler(cacheSvc *cache.Service, evictionSvc *eviction.Service, pool *fetcher.BrowserPool, fetchers *fetcher.Resolver, namespaces *namespace.Resolver, logger arbor.ILogger) *CacheHandler {
	return &CacheHandler{
		cache:      cacheSvc,
		eviction:   evictionSvc,
		pool:       pool,
		fetchers:   fetchers,
		namespaces: namespaces,
		logger:     logger,
	}
}

type cacheStoreBody struct {
	cache.StoreRequest
	Namespace string `json:"namespace,omitempty"`
}

// CacheHandler dispatches /api/v1/cache: POST runs a semantic query,
// DELETE flushes a namespace (or, with ?all=true, the whole index).
func (h *CacheHandler) CacheHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.queryHandler(w, r)
	case http.MethodDelete:
		h.flushHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// StoreHandler handles POST /api/v1/cache/store: direct document ingest.
func (h *CacheHandler) StoreHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var body cacheStoreBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	id, err := h.cache.Store(r.Context(), &body.StoreRequest, ns)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "stored",
		"id":        id,
		"namespace": ns,
	})
}

func (h *CacheHandler) flushHandler(w http.ResponseWriter, r *http.Request) {
	ns := ""
	if r.URL.Query().Get("all") != "true" {
		ns = ResolveNamespace(r, h.namespaces, r.URL.Query().Get("namespace"))
	}

	deleted, err := h.cache.Flush(r.Context(), ns)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "flushed",
		"deleted": deleted,
	})
}

type cacheQueryBody struct {
	cache.QueryRequest
	Namespace string `json:"namespace,omitempty"`
}

func (h *CacheHandler) queryHandler(w http.ResponseWriter, r *http.Request) {
	var body cacheQueryBody
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Query == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	ns := ResolveNamespace(r, h.namespaces, body.Namespace)
	resp, err := h.cache.Query(r.Context(), &body.QueryRequest, ns)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}

// EvictHandler handles POST /api/v1/cache/evict: an on-demand TTL sweep.
func (h *CacheHandler) EvictHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := h.eviction.Sweep(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// PromoteHandler handles POST /api/v1/cache/promote: agent tier into the
// shared index. Fails outside agent mode.
func (h *CacheHandler) PromoteHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	promoted, err := h.cache.Promote(r.Context())
	if err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	h.logger.Info().Int("promoted", promoted).Msg("Agent tier promoted to shared index")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "promoted",
		"promoted": promoted,
	})
}

// StatsHandler handles GET /api/v1/stats: index entry counts plus runtime
// gauges from the fetch pipeline.
func (h *CacheHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	entries, err := h.cache.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries":       entries,
		"browser_pool":  h.pool.Stats(),
		"domain_memory": h.fetchers.MemorySize(),
	})
}
