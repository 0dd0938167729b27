package server

import (
	"net/http"

	"github.com/noeticlabs/websearch/internal/handlers"
)

// projectHeader mirrors the handler constant for the CORS allow list.
const projectHeader = handlers.ProjectHeader

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (job event stream)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Search
	mux.HandleFunc("/api/v1/search", s.app.SearchHandler.SearchHandler)

	// API routes - Crawl and chunking
	mux.HandleFunc("/api/v1/crawl", s.app.CrawlHandler.CrawlHandler)
	mux.HandleFunc("/api/v1/chunk", s.app.CrawlHandler.ChunkHandler)

	// API routes - Batch crawl jobs
	mux.HandleFunc("/api/v1/batch-crawl", s.app.JobHandler.BatchCrawlHandler)
	mux.HandleFunc("/api/v1/jobs", s.app.JobHandler.JobsHandler)
	mux.HandleFunc("/api/v1/jobs/", s.app.JobHandler.JobRoutesHandler) // GET/DELETE /{id}, POST /{id}/cancel

	// API routes - Semantic cache
	mux.HandleFunc("/api/v1/cache", s.app.CacheHandler.CacheHandler) // POST (query), DELETE (flush)
	mux.HandleFunc("/api/v1/cache/store", s.app.CacheHandler.StoreHandler)
	mux.HandleFunc("/api/v1/cache/evict", s.app.CacheHandler.EvictHandler)
	mux.HandleFunc("/api/v1/cache/promote", s.app.CacheHandler.PromoteHandler)
	mux.HandleFunc("/api/v1/stats", s.app.CacheHandler.StatsHandler)

	// API routes - URL discovery
	mux.HandleFunc("/api/v1/sitemap", s.app.DiscoveryHandler.SitemapHandler)
	mux.HandleFunc("/api/v1/map", s.app.DiscoveryHandler.MapHandler)

	// API routes - System
	mux.HandleFunc("/api/v1/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/v1/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}
