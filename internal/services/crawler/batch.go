// -----------------------------------------------------------------------
// Batch Crawl - bounded-concurrency crawl of a URL list with a paced
// start gate: request starts are at least the configured interval apart
// no matter how many workers are free
// -----------------------------------------------------------------------

package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/sitemap"
)

// ProgressFunc observes each finished URL. chunksStored is the number of
// chunks indexed for that page; err is nil on success.
type ProgressFunc func(url string, chunksStored int, err error)

// BatchCrawler fans a URL list over bounded workers.
type BatchCrawler struct {
	config  *common.Config
	crawls  *Service
	sitemap *sitemap.Parser
	logger  arbor.ILogger
}

// NewBatchCrawler creates the batch engine.
func NewBatchCrawler(config *common.Config, crawls *Service, sitemapParser *sitemap.Parser, logger arbor.ILogger) *BatchCrawler {
	return &BatchCrawler{
		config:  config,
		crawls:  crawls,
		sitemap: sitemapParser,
		logger:  logger,
	}
}

// ResolveURLs expands the request into the concrete URL list: explicit
// URLs verbatim, or sitemap discovery for a domain request.
func (b *BatchCrawler) ResolveURLs(ctx context.Context, req *models.BatchCrawlRequest) ([]string, error) {
	maxURLs := req.MaxURLs
	if maxURLs <= 0 {
		maxURLs = b.config.Crawler.MaxURLs
	}

	if len(req.URLs) > 0 {
		urls := req.URLs
		if req.PathFilter != "" {
			re, err := regexp.Compile(req.PathFilter)
			if err != nil {
				return nil, fmt.Errorf("invalid path filter %q: %w", req.PathFilter, err)
			}
			filtered := urls[:0:0]
			for _, u := range urls {
				if re.MatchString(u) {
					filtered = append(filtered, u)
				}
			}
			urls = filtered
		}
		if len(urls) > maxURLs {
			urls = urls[:maxURLs]
		}
		return urls, nil
	}

	if req.Domain == "" {
		return nil, fmt.Errorf("batch crawl requires urls or a domain")
	}

	discovered, err := b.sitemap.Discover(ctx, &sitemap.Request{
		URL:    normalizeDomain(req.Domain),
		Filter: req.PathFilter,
		Limit:  maxURLs,
	})
	if err != nil {
		return nil, fmt.Errorf("sitemap discovery for %s failed: %w", req.Domain, err)
	}
	return discovered.URLs, nil
}

func normalizeDomain(domain string) string {
	if len(domain) >= 8 && (domain[:7] == "http://" || domain[:8] == "https://") {
		return domain
	}
	return "https://" + domain
}

// explicitFetcher maps the request fetch mode to a resolver override.
// "auto" means no override: let the chain decide per URL.
func explicitFetcher(mode string) string {
	if mode == "auto" {
		return ""
	}
	return mode
}

// Run crawls every URL and returns the batch totals. Workers are bounded
// by max concurrency, and a single start permit spaces request starts by
// the rate limit interval. One URL failing never aborts the batch; the
// context cancelling does.
func (b *BatchCrawler) Run(ctx context.Context, urls []string, req *models.BatchCrawlRequest, namespace string, progress ProgressFunc) (*models.BatchCrawlResult, error) {
	start := time.Now()

	concurrency := req.MaxConcurrency
	if concurrency <= 0 {
		concurrency = b.config.Crawler.MaxConcurrency
	}
	rateLimit := time.Duration(req.RateLimitMs) * time.Millisecond
	if req.RateLimitMs <= 0 {
		rateLimit = time.Duration(b.config.Crawler.RateLimitMs) * time.Millisecond
	}
	taskTimeout := b.config.Crawler.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 60 * time.Second
	}
	autoChunk := req.EffectiveAutoChunk(b.config.Crawler.AutoChunk)

	// The permit gates request starts: a worker takes it, schedules its
	// return after the interval, and only then begins the fetch. Fetches
	// overlap; starts stay spaced.
	permit := make(chan struct{}, 1)
	permit <- struct{}{}

	result := &models.BatchCrawlResult{TotalURLs: len(urls)}
	var resultMu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, rawURL := range urls {
		url := rawURL
		group.Go(func() error {
			select {
			case <-permit:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			// The permit returns after the interval whether or not this
			// fetch is still running. The last timer can fire after Run
			// returns; its send lands in the buffered channel, which is
			// collected with the batch.
			time.AfterFunc(rateLimit, func() { permit <- struct{}{} })

			taskCtx, cancel := context.WithTimeout(groupCtx, taskTimeout)
			defer cancel()

			resp, err := b.crawls.Crawl(taskCtx, &CrawlRequest{
				Fetch: models.FetchRequest{
					URL:     url,
					Fetcher: explicitFetcher(req.FetchMode),
				},
				AutoChunk: autoChunk,
				Strategy:  req.ChunkStrategy,
			}, namespace)

			// A chain-exhausted URL comes back as a zero-status result
			// rather than an error; the batch still counts it as failed.
			if err == nil && resp.Result.Failed() {
				reason := "fetch failed"
				if resp.Result != nil && resp.Result.ProviderMeta["error"] != "" {
					reason = resp.Result.ProviderMeta["error"]
				}
				err = errors.New(reason)
			}

			resultMu.Lock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, models.JobError{URL: url, Reason: err.Error()})
			} else {
				result.Crawled++
				if resp.Chunked > 0 {
					result.Chunked++
				}
			}
			resultMu.Unlock()

			if err != nil {
				b.logger.Warn().Err(err).Str("url", url).Msg("Batch crawl URL failed")
				progress(url, 0, err)
				return nil
			}
			progress(url, resp.Chunked, nil)
			return nil
		})
	}

	err := group.Wait()
	result.Duration = time.Since(start)
	return result, err
}
