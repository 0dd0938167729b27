package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/cache"
	"github.com/noeticlabs/websearch/internal/services/chunker"
	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/crawler"
	"github.com/noeticlabs/websearch/internal/services/embedder"
	"github.com/noeticlabs/websearch/internal/services/eviction"
	"github.com/noeticlabs/websearch/internal/services/extractor"
	"github.com/noeticlabs/websearch/internal/services/fetcher"
	"github.com/noeticlabs/websearch/internal/services/namespace"
	"github.com/noeticlabs/websearch/internal/services/pdf"
	"github.com/noeticlabs/websearch/internal/services/search"
	"github.com/noeticlabs/websearch/internal/storage/vector"
)

// stubProvider returns canned results without any network.
type stubProvider struct {
	results []models.SearchResult
}

func (s *stubProvider) Type() string { return "stub" }

func (s *stubProvider) Capabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{MaxResults: 10}
}

func (s *stubProvider) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	return &models.SearchResponse{Results: s.results, Provider: "stub"}, nil
}

var _ interfaces.SearchProvider = (*stubProvider)(nil)

func newSearchTestHandler(t *testing.T) *SearchHandler {
	t.Helper()
	logger := common.GetLogger()
	config := common.NewDefaultConfig()

	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := &stubProvider{results: []models.SearchResult{
		{Title: "Result", URL: "https://example.com", Snippet: "snippet"},
	}}
	svc := search.NewService(config, embedder.NewLocalEmbedder(config.Embedding.Dimension), store, provider, logger)
	return NewSearchHandler(svc, namespace.New("none"), logger)
}

func TestSearchHandler_PostReturnsResults(t *testing.T) {
	handler := newSearchTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search",
		strings.NewReader(`{"query":"golang context cancellation"}`))
	rec := httptest.NewRecorder()
	handler.SearchHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "stub", resp.Provider)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Result", resp.Results[0].Title)
}

func TestSearchHandler_RejectsWrongMethod(t *testing.T) {
	handler := newSearchTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search", nil)
	rec := httptest.NewRecorder()
	handler.SearchHandler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSearchHandler_MissingQuery(t *testing.T) {
	handler := newSearchTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search",
		strings.NewReader(`{"max_results":3}`))
	rec := httptest.NewRecorder()
	handler.SearchHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_UnknownFieldRejected(t *testing.T) {
	handler := newSearchTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search",
		strings.NewReader(`{"query":"x","qery_typo":"y"}`))
	rec := httptest.NewRecorder()
	handler.SearchHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Contains(t, body["error"], "invalid request body")
}

func TestResolveNamespace_Precedence(t *testing.T) {
	resolver := namespace.New("workspace-root")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search?namespace=query-ns", nil)
	req.Header.Set(ProjectHeader, "header-project")

	// Explicit body value beats everything.
	assert.Equal(t, "explicit", ResolveNamespace(req, resolver, "explicit"))
	// The query parameter beats the header.
	assert.Equal(t, "query-ns", ResolveNamespace(req, resolver, ""))

	// Header beats the workspace fallback.
	headerOnly := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)
	headerOnly.Header.Set(ProjectHeader, "header-project")
	assert.Equal(t, "header-project", ResolveNamespace(headerOnly, resolver, ""))

	// Without any of those the workspace root wins.
	bare := httptest.NewRequest(http.MethodPost, "/api/v1/search", nil)
	assert.Equal(t, "workspace-root", ResolveNamespace(bare, resolver, ""))
}

func newCrawlTestHandler(t *testing.T) *CrawlHandler {
	t.Helper()
	logger := common.GetLogger()
	config := common.NewDefaultConfig()

	static, err := fetcher.NewStaticFetcher(config, extractor.New(logger), pdf.NewExtractor(logger), logger)
	require.NoError(t, err)
	resolver := fetcher.NewResolver(config, []interfaces.Fetcher{static}, logger)

	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	chunkSvc := chunks.NewService(config, chunker.New(logger), embedder.NewLocalEmbedder(64), store, logger)
	crawls := crawler.NewService(config, resolver, chunkSvc, logger)
	return NewCrawlHandler(crawls, chunkSvc, namespace.New("none"), logger)
}

func TestCrawlHandler_DeadURLReturnsStructuredResult(t *testing.T) {
	handler := newCrawlTestHandler(t)

	rec := httptest.NewRecorder()
	handler.CrawlHandler(rec, postJSON("/api/v1/crawl",
		`{"fetch":{"url":"http://127.0.0.1:1/unreachable"}}`))

	// One unreachable page is a structured zero-status result, not a 502.
	require.Equal(t, http.StatusOK, rec.Code)
	var resp crawler.CrawlResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Result)
	assert.Zero(t, resp.Result.StatusCode)
	assert.Empty(t, resp.Result.Content)
}

func newCacheTestHandler(t *testing.T) *CacheHandler {
	t.Helper()
	logger := common.GetLogger()
	config := common.NewDefaultConfig()

	store, err := vector.Open(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	emb := embedder.NewLocalEmbedder(config.Embedding.Dimension)
	cacheSvc := cache.NewService(config, emb, store, logger)
	evictionSvc := eviction.NewService(config, store, logger)
	pool := fetcher.NewBrowserPool(config, logger)
	t.Cleanup(pool.Shutdown)
	resolver := fetcher.NewResolver(config, nil, logger)
	return NewCacheHandler(cacheSvc, evictionSvc, pool, resolver, namespace.New("none"), logger)
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCacheHandler_StoreThenQuery(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.StoreHandler(rec, postJSON("/api/v1/cache/store",
		`{"content":"chromem persists embeddings on disk","namespace":"alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stored))
	assert.NotEmpty(t, stored["id"])
	assert.Equal(t, "alpha", stored["namespace"])

	// POST /cache runs the semantic query.
	rec = httptest.NewRecorder()
	handler.CacheHandler(rec, postJSON("/api/v1/cache",
		`{"query":"chromem persists embeddings on disk","namespace":"alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cache.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Matches)
	assert.Contains(t, resp.Matches[0].Content, "chromem")
}

func TestCacheHandler_QueryParamNamespace(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.StoreHandler(rec, postJSON("/api/v1/cache/store?namespace=alpha",
		`{"content":"entry that lives in alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	// The same query against another namespace sees nothing.
	rec = httptest.NewRecorder()
	handler.CacheHandler(rec, postJSON("/api/v1/cache?namespace=beta",
		`{"query":"entry that lives in alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var miss cache.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&miss))
	assert.Empty(t, miss.Matches)

	rec = httptest.NewRecorder()
	handler.CacheHandler(rec, postJSON("/api/v1/cache?namespace=alpha",
		`{"query":"entry that lives in alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var hit cache.QueryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&hit))
	assert.NotEmpty(t, hit.Matches)
}

func TestCacheHandler_QueryRequiresQuery(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.CacheHandler(rec, postJSON("/api/v1/cache", `{"top_k":3}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheHandler_FlushNamespace(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.StoreHandler(rec, postJSON("/api/v1/cache/store",
		`{"content":"flush me","namespace":"alpha"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cache?namespace=alpha", nil)
	rec = httptest.NewRecorder()
	handler.CacheHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "flushed", body["status"])
	assert.Equal(t, float64(1), body["deleted"])
}

func TestCacheHandler_Stats(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.StoreHandler(rec, postJSON("/api/v1/cache/store", `{"content":"a counted entry"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	entries, ok := body["entries"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), entries["total"])
	assert.Contains(t, body, "browser_pool")
	assert.Contains(t, body, "domain_memory")
}

func TestCacheHandler_MethodGuards(t *testing.T) {
	handler := newCacheTestHandler(t)

	rec := httptest.NewRecorder()
	handler.CacheHandler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	handler.StoreHandler(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/store", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	handler := NewStatusHandler(common.NewDefaultConfig(), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestNotFoundHandler(t *testing.T) {
	handler := NewStatusHandler(common.NewDefaultConfig(), common.GetLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	handler.NotFoundHandler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body["error"], "/api/v1/nope")
}
