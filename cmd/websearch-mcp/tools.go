package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createWebSearchTool returns the web_search tool definition
func createWebSearchTool() mcp.Tool {
	return mcp.NewTool("web_search",
		mcp.WithDescription("Search the web. Semantically similar recent queries are answered from the local cache without hitting a provider."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum results to return (default: 10)"),
		),
		mcp.WithString("freshness",
			mcp.Description("Restrict by age: day, week, month, year"),
		),
		mcp.WithBoolean("skip_cache",
			mcp.Description("Bypass the semantic cache and force a live search"),
		),
		mcp.WithString("project",
			mcp.Description("Project identity for namespace isolation"),
		),
	)
}

// createCrawlPageTool returns the crawl_page tool definition
func createCrawlPageTool() mcp.Tool {
	return mcp.NewTool("crawl_page",
		mcp.WithDescription("Fetch one page as markdown through the static/browser/reader fetcher chain, optionally chunking it into the cache"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Page URL"),
		),
		mcp.WithString("fetcher",
			mcp.Description("Force a fetcher: static, dynamic, api (default: automatic)"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: markdown (default), text, html"),
		),
		mcp.WithBoolean("auto_chunk",
			mcp.Description("Chunk and index the page content (default: false)"),
		),
		mcp.WithString("project",
			mcp.Description("Project identity for namespace isolation"),
		),
	)
}

// createChunkContentTool returns the chunk_content tool definition
func createChunkContentTool() mcp.Tool {
	return mcp.NewTool("chunk_content",
		mcp.WithDescription("Split text into chunks and optionally index them in the semantic cache"),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Text to split"),
		),
		mcp.WithString("strategy",
			mcp.Description("Chunking strategy: sentence (default), token, semantic"),
		),
		mcp.WithString("source_url",
			mcp.Description("Origin URL recorded on each stored chunk"),
		),
		mcp.WithBoolean("store",
			mcp.Description("Embed and index the chunks (default: false)"),
		),
		mcp.WithString("project",
			mcp.Description("Project identity for namespace isolation"),
		),
	)
}

// createCacheQueryTool returns the cache_query tool definition
func createCacheQueryTool() mcp.Tool {
	return mcp.NewTool("cache_query",
		mcp.WithDescription("Semantic lookup over the local knowledge cache"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Query text"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum matches (default: 5)"),
		),
		mcp.WithString("entry_type",
			mcp.Description("Restrict to one type: search_result, query_cache, crawl_chunk"),
		),
		mcp.WithString("project",
			mcp.Description("Project identity for namespace isolation"),
		),
	)
}

// createCacheEvictTool returns the cache_evict tool definition
func createCacheEvictTool() mcp.Tool {
	return mcp.NewTool("cache_evict",
		mcp.WithDescription("Run a TTL eviction sweep over the cache now"),
	)
}

// createCacheFlushTool returns the cache_flush tool definition
func createCacheFlushTool() mcp.Tool {
	return mcp.NewTool("cache_flush",
		mcp.WithDescription("Delete cached entries for a project namespace, or everything with all=true"),
		mcp.WithString("project",
			mcp.Description("Project namespace to flush"),
		),
		mcp.WithBoolean("all",
			mcp.Description("Flush the entire index regardless of namespace"),
		),
	)
}

// createCachePromoteTool returns the cache_promote tool definition
func createCachePromoteTool() mcp.Tool {
	return mcp.NewTool("cache_promote",
		mcp.WithDescription("Copy this agent's private cache tier into the shared index (agent mode only)"),
	)
}

// createDiscoverSitemapTool returns the discover_sitemap tool definition
func createDiscoverSitemapTool() mcp.Tool {
	return mcp.NewTool("discover_sitemap",
		mcp.WithDescription("Expand a site's sitemap (robots.txt or /sitemap.xml) into a URL list"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Site root URL"),
		),
		mcp.WithString("filter",
			mcp.Description("Regular expression; only matching URLs are returned"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum URLs to return"),
		),
	)
}

// createMapSiteTool returns the map_site tool definition
func createMapSiteTool() mcp.Tool {
	return mcp.NewTool("map_site",
		mcp.WithDescription("Breadth-first link walk of a site, staying on the starting host"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Starting URL"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Link depth from the start page (default: 2)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum URLs to collect (default: 100)"),
		),
		mcp.WithString("filter",
			mcp.Description("Regex; only matching URLs are returned, non-matching pages are still expanded"),
		),
	)
}

// createBatchCrawlTool returns the batch_crawl tool definition
func createBatchCrawlTool() mcp.Tool {
	return mcp.NewTool("batch_crawl",
		mcp.WithDescription("Crawl many URLs (or a whole domain via its sitemap) as a background job; returns a job id to poll with job_status"),
		mcp.WithArray("urls",
			mcp.WithStringItems(),
			mcp.Description("Explicit URL list"),
		),
		mcp.WithString("domain",
			mcp.Description("Domain whose sitemap supplies the URL list (used when urls is empty)"),
		),
		mcp.WithString("path_filter",
			mcp.Description("Regular expression applied to candidate URLs"),
		),
		mcp.WithNumber("max_urls",
			mcp.Description("Cap on crawled URLs"),
		),
		mcp.WithString("fetch_mode",
			mcp.Description("Fetcher for every page: auto (default), static, dynamic or api"),
		),
		mcp.WithNumber("max_concurrency",
			mcp.Description("Parallel crawl workers"),
		),
		mcp.WithNumber("rate_limit_ms",
			mcp.Description("Minimum milliseconds between request starts"),
		),
		mcp.WithBoolean("auto_chunk",
			mcp.Description("Chunk and index every crawled page (default: true)"),
		),
		mcp.WithString("chunk_strategy",
			mcp.Description("Chunking strategy: sentence (default), semantic or token"),
		),
		mcp.WithString("project",
			mcp.Description("Project identity for namespace isolation"),
		),
	)
}

// createJobStatusTool returns the job_status tool definition
func createJobStatusTool() mcp.Tool {
	return mcp.NewTool("job_status",
		mcp.WithDescription("Progress snapshot of a batch crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job id returned by batch_crawl"),
		),
	)
}

// createJobCancelTool returns the job_cancel tool definition
func createJobCancelTool() mcp.Tool {
	return mcp.NewTool("job_cancel",
		mcp.WithDescription("Cancel a running batch crawl job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job id returned by batch_crawl"),
		),
	)
}
