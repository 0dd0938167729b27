package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/app"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/cache"
	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/crawler"
	"github.com/noeticlabs/websearch/internal/services/mapper"
	"github.com/noeticlabs/websearch/internal/services/sitemap"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return textResult(fmt.Sprintf("Error: "+format, args...))
}

// resolveNamespace maps the optional project argument to an index
// namespace the same way the HTTP layer maps the project header.
func resolveNamespace(a *app.App, request mcp.CallToolRequest) string {
	return a.NamespaceResolver.Resolve("", request.GetString("project", ""))
}

// handleWebSearch implements the web_search tool
func handleWebSearch(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("query parameter is required"), nil
		}

		req := &models.SearchRequest{
			Query:      query,
			MaxResults: request.GetInt("max_results", 10),
			Freshness:  models.Freshness(request.GetString("freshness", "")),
			SkipCache:  request.GetBool("skip_cache", false),
		}

		resp, err := a.SearchService.Search(ctx, req, resolveNamespace(a, request))
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Search failed")
			return errorResult("search failed: %v", err), nil
		}

		return textResult(formatSearchResponse(query, resp)), nil
	}
}

// handleCrawlPage implements the crawl_page tool
func handleCrawlPage(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return errorResult("url parameter is required"), nil
		}

		resp, err := a.CrawlerService.Crawl(ctx, &crawler.CrawlRequest{
			Fetch: models.FetchRequest{
				URL:     url,
				Fetcher: request.GetString("fetcher", ""),
				Format:  models.OutputFormat(request.GetString("format", "")),
			},
			AutoChunk: request.GetBool("auto_chunk", false),
		}, resolveNamespace(a, request))
		if err != nil {
			logger.Error().Err(err).Str("url", url).Msg("Crawl failed")
			return errorResult("crawl failed: %v", err), nil
		}

		return textResult(formatCrawlResponse(resp)), nil
	}
}

// handleChunkContent implements the chunk_content tool
func handleChunkContent(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := request.RequireString("content")
		if err != nil || content == "" {
			return errorResult("content parameter is required"), nil
		}

		resp, err := a.ChunkService.Process(ctx, &chunks.Request{
			Content:   content,
			SourceURL: request.GetString("source_url", ""),
			Store:     request.GetBool("store", false),
			Options: models.ChunkOptions{
				Strategy: request.GetString("strategy", ""),
			},
		}, resolveNamespace(a, request))
		if err != nil {
			return errorResult("chunking failed: %v", err), nil
		}

		return textResult(formatChunkResponse(resp)), nil
	}
}

// handleCacheQuery implements the cache_query tool
func handleCacheQuery(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("query parameter is required"), nil
		}

		resp, err := a.CacheService.Query(ctx, &cache.QueryRequest{
			Query:     query,
			TopK:      request.GetInt("top_k", 5),
			EntryType: request.GetString("entry_type", ""),
		}, resolveNamespace(a, request))
		if err != nil {
			logger.Error().Err(err).Msg("Cache query failed")
			return errorResult("cache query failed: %v", err), nil
		}

		return textResult(formatMatches(query, resp.Matches)), nil
	}
}

// handleCacheEvict implements the cache_evict tool
func handleCacheEvict(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := a.EvictionService.Sweep(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Eviction sweep failed")
			return errorResult("eviction failed: %v", err), nil
		}
		return textResult(fmt.Sprintf("Evicted %d entries (%d shed over the size cap) in %s",
			result.Deleted, result.Shed, result.Duration.Round(time.Millisecond))), nil
	}
}

// handleCacheFlush implements the cache_flush tool
func handleCacheFlush(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ns := ""
		if !request.GetBool("all", false) {
			ns = resolveNamespace(a, request)
		}

		deleted, err := a.CacheService.Flush(ctx, ns)
		if err != nil {
			logger.Error().Err(err).Msg("Cache flush failed")
			return errorResult("flush failed: %v", err), nil
		}
		return textResult(fmt.Sprintf("Flushed %d entries", deleted)), nil
	}
}

// handleCachePromote implements the cache_promote tool
func handleCachePromote(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		promoted, err := a.CacheService.Promote(ctx)
		if err != nil {
			return errorResult("promote failed: %v", err), nil
		}
		return textResult(fmt.Sprintf("Promoted %d entries to the shared index", promoted)), nil
	}
}

// handleDiscoverSitemap implements the discover_sitemap tool
func handleDiscoverSitemap(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return errorResult("url parameter is required"), nil
		}

		result, err := a.SitemapParser.Discover(ctx, &sitemap.Request{
			URL:    url,
			Filter: request.GetString("filter", ""),
			Limit:  request.GetInt("limit", 0),
		})
		if err != nil {
			logger.Error().Err(err).Str("url", url).Msg("Sitemap discovery failed")
			return errorResult("sitemap discovery failed: %v", err), nil
		}

		return textResult(formatURLList("Sitemap URLs", result.URLs, result.Total)), nil
	}
}

// handleMapSite implements the map_site tool
func handleMapSite(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil || url == "" {
			return errorResult("url parameter is required"), nil
		}

		result, err := a.MapperService.Map(ctx, &mapper.Request{
			URL:      url,
			MaxDepth: request.GetInt("max_depth", 0),
			Limit:    request.GetInt("limit", 0),
			Filter:   request.GetString("filter", ""),
		})
		if err != nil {
			logger.Error().Err(err).Str("url", url).Msg("Site map failed")
			return errorResult("site map failed: %v", err), nil
		}

		return textResult(formatURLList("Discovered URLs", result.URLs, result.Visited)), nil
	}
}

// handleBatchCrawl implements the batch_crawl tool
func handleBatchCrawl(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		autoChunk := request.GetBool("auto_chunk", true)
		req := &models.BatchCrawlRequest{
			URLs:           request.GetStringSlice("urls", nil),
			Domain:         request.GetString("domain", ""),
			PathFilter:     request.GetString("path_filter", ""),
			MaxURLs:        request.GetInt("max_urls", 0),
			FetchMode:      request.GetString("fetch_mode", ""),
			ChunkStrategy:  request.GetString("chunk_strategy", ""),
			MaxConcurrency: request.GetInt("max_concurrency", 0),
			RateLimitMs:    request.GetInt("rate_limit_ms", 0),
			AutoChunk:      &autoChunk,
		}

		id, err := a.JobService.Start(req, resolveNamespace(a, request))
		if err != nil {
			logger.Error().Err(err).Msg("Batch crawl rejected")
			return errorResult("batch crawl failed to start: %v", err), nil
		}

		return textResult(fmt.Sprintf("Batch crawl started. Poll with job_status using job_id %s", id)), nil
	}
}

// handleJobStatus implements the job_status tool
func handleJobStatus(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil || id == "" {
			return errorResult("job_id parameter is required"), nil
		}

		status, err := a.JobService.Get(id)
		if err != nil {
			return errorResult("%v", err), nil
		}
		return textResult(formatJobStatus(status)), nil
	}
}

// handleJobCancel implements the job_cancel tool
func handleJobCancel(a *app.App, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil || id == "" {
			return errorResult("job_id parameter is required"), nil
		}

		if err := a.JobService.Cancel(id); err != nil {
			return errorResult("%v", err), nil
		}
		return textResult(fmt.Sprintf("Cancellation requested for job %s", id)), nil
	}
}
