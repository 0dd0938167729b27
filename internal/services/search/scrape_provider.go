// -----------------------------------------------------------------------
// Scraping Search Provider - DuckDuckGo HTML endpoint, no API key. Rate
// limited, with proxy stream rotation every N requests and a one-shot
// rotate-and-retry when a response comes back empty.
// -----------------------------------------------------------------------

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// TypeScraping names the keyless scraping provider.
const TypeScraping = "scraping"

const ddgEndpoint = "https://html.duckduckgo.com/html/"

// ScrapeProvider queries the DuckDuckGo HTML endpoint and parses results
// with goquery.
type ScrapeProvider struct {
	config   *common.Config
	client   *http.Client
	dialer   *streamDialer
	limiter  *rate.Limiter
	requests atomic.Int64
	logger   arbor.ILogger
}

var _ interfaces.SearchProvider = (*ScrapeProvider)(nil)

// NewScrapeProvider creates the scraping provider. A SOCKS5 proxy enables
// stream rotation; without one requests go direct.
func NewScrapeProvider(config *common.Config, logger arbor.ILogger) *ScrapeProvider {
	interval, err := time.ParseDuration(config.Search.RateLimit)
	if err != nil || interval <= 0 {
		interval = time.Second
	}
	timeout, err := time.ParseDuration(config.Search.RequestTimeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &ScrapeProvider{
		config:  config,
		dialer:  newStreamDialer(config.Proxy, timeout),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Type returns the provider name.
func (p *ScrapeProvider) Type() string {
	return TypeScraping
}

// Capabilities reports what HTML scraping can honor. Domain filters ride
// along as site: operators in the query itself.
func (p *ScrapeProvider) Capabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		Freshness:    false,
		Language:     true,
		Country:      true,
		DomainFilter: true,
		MaxResults:   30,
	}
}

// Search runs the query. Empty result pages trigger one stream rotation
// and retry when configured; scraping endpoints throttle by origin and a
// fresh stream usually clears it.
func (p *ScrapeProvider) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	results, err := p.query(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 && p.config.Search.RetryOnEmpty && p.dialer != nil {
		p.logger.Debug().Str("query", req.Query).Msg("Empty result page, rotating proxy stream and retrying")
		p.dialer.Rotate()
		results, err = p.query(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	return &models.SearchResponse{
		Results:  results,
		Provider: TypeScraping,
		Duration: time.Since(start),
	}, nil
}

func (p *ScrapeProvider) query(ctx context.Context, req *models.SearchRequest) ([]models.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	// Rotate the exit stream every N requests so sustained traffic does
	// not look like one origin.
	if p.dialer != nil && p.config.Search.RotateEvery > 0 {
		if n := p.requests.Add(1); n%int64(p.config.Search.RotateEvery) == 0 {
			p.dialer.Rotate()
		}
	}

	form := url.Values{}
	form.Set("q", buildQuery(req))
	if req.Country != "" && req.Language != "" {
		form.Set("kl", strings.ToLower(req.Country)+"-"+strings.ToLower(req.Language))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ddgEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", p.config.Fetcher.UserAgent)

	client, err := p.httpClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	return parseResults(doc, req.EffectiveMaxResults()), nil
}

func (p *ScrapeProvider) httpClient() (*http.Client, error) {
	if p.dialer == nil {
		return p.client, nil
	}
	return p.dialer.Client()
}

// buildQuery folds domain filters into the query string the way search
// operators expect.
func buildQuery(req *models.SearchRequest) string {
	parts := []string{req.Query}
	for _, domain := range req.IncludeDomains {
		parts = append(parts, "site:"+domain)
	}
	for _, domain := range req.ExcludeDomains {
		parts = append(parts, "-site:"+domain)
	}
	return strings.Join(parts, " ")
}

// parseResults extracts result blocks from the HTML page.
func parseResults(doc *goquery.Document, limit int) []models.SearchResult {
	results := []models.SearchResult{}

	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__title a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		result := models.SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     decodeRedirect(href),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		}
		if result.Title == "" || result.URL == "" {
			return true
		}

		results = append(results, result)
		return len(results) < limit
	})

	return results
}

// decodeRedirect unwraps the uddg redirect parameter to the target URL.
func decodeRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
	}
	if parsed.Scheme == "" {
		return "https:" + href
	}
	return href
}
