// -----------------------------------------------------------------------
// websearch - local knowledge-cache daemon and one-shot CLI
//
//	websearch serve            run the HTTP daemon (default)
//	websearch search <query>   one-shot web search, JSON on stdout
//	websearch crawl <url>      one-shot page crawl, JSON on stdout
//	websearch version          print the version
// -----------------------------------------------------------------------

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/app"
	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/server"
	"github.com/noeticlabs/websearch/internal/services/crawler"
)

var (
	configPath   = flag.String("config", "", "Configuration file path")
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	namespaceArg = flag.String("namespace", "", "Index namespace for one-shot commands")
	showVersion  = flag.Bool("version", false, "Print version information")
)

func main() {
	flag.Parse()

	// Fast path: no config or storage touched for a version probe.
	if *showVersion {
		fmt.Printf("websearch version %s\n", common.GetVersion())
		os.Exit(0)
	}

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}
	if command == "version" {
		fmt.Printf("websearch version %s\n", common.GetVersion())
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = common.DiscoverConfigPath()
	}
	config, err := common.LoadFromFile(path)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	switch command {
	case "serve":
		runServe(config)
	case "search":
		runSearch(config, flag.Arg(1))
	case "crawl":
		runCrawl(config, flag.Arg(1))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(1)
	}
}

// runServe starts the daemon and blocks until interrupted.
func runServe(config *common.Config) {
	logger := common.InitLogger(config)
	common.PrintBanner(config, logger)

	ctx := context.Background()
	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start background services")
		os.Exit(1)
	}

	srv := server.New(application)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
			os.Exit(1)
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info().Msg("Interrupt signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}

// oneShotApp builds the application for a single command: quiet logger,
// no eviction scheduler.
func oneShotApp(config *common.Config) (*app.App, arbor.ILogger, error) {
	config.Eviction.DisableSweeper = true
	config.Logging.Output = []string{"stderr"}
	if config.Logging.Level == "info" {
		config.Logging.Level = "warn"
	}
	logger := common.InitLogger(config)

	application, err := app.New(context.Background(), config, logger)
	return application, logger, err
}

func runSearch(config *common.Config, query string) {
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: websearch search <query>")
		os.Exit(1)
	}

	application, _, err := oneShotApp(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "websearch: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ns := application.NamespaceResolver.Resolve(*namespaceArg, "")
	resp, err := application.SearchService.Search(context.Background(), &models.SearchRequest{Query: query}, ns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "websearch: search failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(resp)
}

func runCrawl(config *common.Config, url string) {
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: websearch crawl <url>")
		os.Exit(1)
	}

	application, _, err := oneShotApp(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "websearch: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ns := application.NamespaceResolver.Resolve(*namespaceArg, "")
	resp, err := application.CrawlerService.Crawl(context.Background(), &crawler.CrawlRequest{
		Fetch:     models.FetchRequest{URL: url},
		AutoChunk: config.Crawler.AutoChunk,
	}, ns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "websearch: crawl failed: %v\n", err)
		os.Exit(1)
	}
	printJSON(resp)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "websearch: %v\n", err)
		os.Exit(1)
	}
}
