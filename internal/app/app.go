// -----------------------------------------------------------------------
// App - builds and owns every component: storage, embedder, fetcher
// chain, services and HTTP handlers
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/handlers"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/services/cache"
	"github.com/noeticlabs/websearch/internal/services/chunker"
	"github.com/noeticlabs/websearch/internal/services/chunks"
	"github.com/noeticlabs/websearch/internal/services/crawler"
	"github.com/noeticlabs/websearch/internal/services/embedder"
	"github.com/noeticlabs/websearch/internal/services/eviction"
	"github.com/noeticlabs/websearch/internal/services/extractor"
	"github.com/noeticlabs/websearch/internal/services/fetcher"
	"github.com/noeticlabs/websearch/internal/services/mapper"
	"github.com/noeticlabs/websearch/internal/services/namespace"
	"github.com/noeticlabs/websearch/internal/services/pdf"
	"github.com/noeticlabs/websearch/internal/services/search"
	"github.com/noeticlabs/websearch/internal/services/sitemap"
	"github.com/noeticlabs/websearch/internal/storage/vector"
)

// App holds all application components and dependencies.
type App struct {
	Config   *common.Config
	Logger   arbor.ILogger
	Embedder interfaces.Embedder
	Store    interfaces.VectorStore

	// Fetch pipeline
	BrowserPool *fetcher.BrowserPool
	Resolver    *fetcher.Resolver

	// Services
	NamespaceResolver *namespace.Resolver
	SearchService     *search.Service
	CacheService      *cache.Service
	ChunkService      *chunks.Service
	CrawlerService    *crawler.Service
	BatchCrawler      *crawler.BatchCrawler
	JobService        *crawler.JobService
	EvictionService   *eviction.Service
	SitemapParser     *sitemap.Parser
	MapperService     *mapper.Service

	// HTTP handlers
	SearchHandler    *handlers.SearchHandler
	CrawlHandler     *handlers.CrawlHandler
	CacheHandler     *handlers.CacheHandler
	JobHandler       *handlers.JobHandler
	DiscoveryHandler *handlers.DiscoveryHandler
	StatusHandler    *handlers.StatusHandler
	WSHandler        *handlers.WebSocketHandler
}

// New wires the application. The browser pool is created but not started;
// the first dynamic fetch launches it.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	emb, err := embedder.NewFromConfig(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.Embedder = emb

	if config.AgentMode() {
		store, err := vector.OpenTwoTier(config.AgentIndexDir(), config.Storage.IndexDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open agent index: %w", err)
		}
		a.Store = store
	} else {
		store, err := vector.Open(config.Storage.IndexDir, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open index: %w", err)
		}
		a.Store = store
	}

	ext := extractor.New(logger)
	pdfExt := pdf.NewExtractor(logger)

	static, err := fetcher.NewStaticFetcher(config, ext, pdfExt, logger)
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("failed to create static fetcher: %w", err)
	}
	a.BrowserPool = fetcher.NewBrowserPool(config, logger)
	dynamic := fetcher.NewDynamicFetcher(config, a.BrowserPool, ext, static, nil, logger)
	api := fetcher.NewAPIFetcher(config, logger)
	a.Resolver = fetcher.NewResolver(config, []interfaces.Fetcher{static, dynamic, api}, logger)

	a.NamespaceResolver = namespace.New("")

	provider, err := search.NewProviderFromConfig(config, logger)
	if err != nil {
		a.Store.Close()
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}
	a.SearchService = search.NewService(config, emb, a.Store, provider, logger)
	a.CacheService = cache.NewService(config, emb, a.Store, logger)
	a.ChunkService = chunks.NewService(config, chunker.New(logger), emb, a.Store, logger)
	a.EvictionService = eviction.NewService(config, a.Store, logger)
	a.SitemapParser = sitemap.New(config, logger)
	a.MapperService = mapper.New(config, ext, logger)

	a.CrawlerService = crawler.NewService(config, a.Resolver, a.ChunkService, logger)
	a.BatchCrawler = crawler.NewBatchCrawler(config, a.CrawlerService, a.SitemapParser, logger)
	a.JobService = crawler.NewJobService(config, a.BatchCrawler, logger)

	a.SearchHandler = handlers.NewSearchHandler(a.SearchService, a.NamespaceResolver, logger)
	a.CrawlHandler = handlers.NewCrawlHandler(a.CrawlerService, a.ChunkService, a.NamespaceResolver, logger)
	a.CacheHandler = handlers.NewCacheHandler(a.CacheService, a.EvictionService, a.BrowserPool, a.Resolver, a.NamespaceResolver, logger)
	a.JobHandler = handlers.NewJobHandler(a.JobService, a.NamespaceResolver, logger)
	a.DiscoveryHandler = handlers.NewDiscoveryHandler(a.SitemapParser, a.MapperService, logger)
	a.StatusHandler = handlers.NewStatusHandler(config, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.JobService, logger)

	return a, nil
}

// Start launches the background pieces that outlive a single request.
func (a *App) Start(ctx context.Context) error {
	if err := a.EvictionService.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Close shuts components down in reverse dependency order.
func (a *App) Close() error {
	a.EvictionService.Stop()
	a.BrowserPool.Shutdown()

	if err := a.Store.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close vector store")
		return err
	}
	return nil
}
