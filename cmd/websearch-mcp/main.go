// -----------------------------------------------------------------------
// websearch-mcp - MCP stdio server exposing the knowledge cache to AI
// coding assistants. Stdout carries JSON-RPC only; all logging goes to
// the warn-level stderr logger.
// -----------------------------------------------------------------------

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/noeticlabs/websearch/internal/app"
	"github.com/noeticlabs/websearch/internal/common"
)

func main() {
	configPath := os.Getenv("WEBSEARCH_CONFIG")
	if configPath == "" {
		configPath = common.DiscoverConfigPath()
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := common.NewStdioLogger()

	ctx := context.Background()
	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	// The stdio server is long-lived, so the eviction schedule runs here
	// the same as in serve mode.
	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start background services")
		os.Exit(1)
	}

	mcpServer := server.NewMCPServer(
		"websearch",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Search and fetch
	mcpServer.AddTool(createWebSearchTool(), handleWebSearch(application, logger))
	mcpServer.AddTool(createCrawlPageTool(), handleCrawlPage(application, logger))

	// Chunking and cache
	mcpServer.AddTool(createChunkContentTool(), handleChunkContent(application, logger))
	mcpServer.AddTool(createCacheQueryTool(), handleCacheQuery(application, logger))
	mcpServer.AddTool(createCacheEvictTool(), handleCacheEvict(application, logger))
	mcpServer.AddTool(createCacheFlushTool(), handleCacheFlush(application, logger))
	mcpServer.AddTool(createCachePromoteTool(), handleCachePromote(application, logger))

	// Discovery and batch crawls
	mcpServer.AddTool(createDiscoverSitemapTool(), handleDiscoverSitemap(application, logger))
	mcpServer.AddTool(createMapSiteTool(), handleMapSite(application, logger))
	mcpServer.AddTool(createBatchCrawlTool(), handleBatchCrawl(application, logger))
	mcpServer.AddTool(createJobStatusTool(), handleJobStatus(application, logger))
	mcpServer.AddTool(createJobCancelTool(), handleJobCancel(application, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
