// -----------------------------------------------------------------------
// Sitemap Parser - discovers sitemaps via robots.txt, expands sitemap
// indexes recursively and returns the URL inventory of a site
// -----------------------------------------------------------------------

package sitemap

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
)

// maxIndexDepth bounds sitemap-index recursion; real sites rarely nest
// past two levels and a cycle must not hang the parser.
const maxIndexDepth = 3

// maxSitemapBody caps one sitemap document read.
const maxSitemapBody = 20 * 1024 * 1024

// Request selects the site and optional filtering.
type Request struct {
	URL     string `json:"url" validate:"required,url"`
	Filter  string `json:"filter,omitempty"`  // Regex applied to each URL
	Limit   int    `json:"limit,omitempty"`   // Max URLs returned, 0 = unlimited
	Timeout int    `json:"timeout,omitempty"` // Seconds for the whole discovery
}

// Result is the discovered inventory.
type Result struct {
	URLs     []string `json:"urls"`
	Sitemaps []string `json:"sitemaps"` // Sitemap documents actually fetched
	Total    int      `json:"total"`    // URLs before limit was applied
}

// Parser discovers and expands sitemaps.
type Parser struct {
	config *common.Config
	client *http.Client
	logger arbor.ILogger
}

// New creates the sitemap parser.
func New(config *common.Config, logger arbor.ILogger) *Parser {
	return &Parser{
		config: config,
		logger: logger,
		client: &http.Client{
			Timeout: config.Fetcher.RequestTimeout,
		},
	}
}

type urlSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// Discover finds the site's sitemaps and returns their URLs. robots.txt
// Sitemap directives are authoritative; when robots.txt lists none the
// well-known /sitemap.xml and /sitemap_index.xml paths are probed in turn.
func (p *Parser) Discover(ctx context.Context, req *Request) (*Result, error) {
	base, err := url.Parse(req.URL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid site URL %q", req.URL)
	}

	var filter *regexp.Regexp
	if req.Filter != "" {
		filter, err = regexp.Compile(req.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter regex %q: %w", req.Filter, err)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
	}

	roots := p.sitemapsFromRobots(ctx, base)
	probing := len(roots) == 0
	if probing {
		origin := base.Scheme + "://" + base.Host
		roots = []string{origin + "/sitemap.xml", origin + "/sitemap_index.xml"}
	}

	seen := make(map[string]bool)
	result := &Result{}
	for _, root := range roots {
		err := p.expand(ctx, root, 0, seen, filter, result)
		if err != nil {
			if probing {
				p.logger.Debug().Err(err).Str("sitemap", root).Msg("Well-known sitemap path not usable")
			} else {
				p.logger.Warn().Err(err).Str("sitemap", root).Msg("Sitemap expansion failed")
			}
		}
		// The well-known paths are alternatives, not a set; stop at the
		// first one that works.
		if probing && err == nil {
			break
		}
	}

	result.Total = len(result.URLs)
	if req.Limit > 0 && len(result.URLs) > req.Limit {
		result.URLs = result.URLs[:req.Limit]
	}
	if result.Total == 0 && len(result.Sitemaps) == 0 {
		return nil, fmt.Errorf("no sitemap found for %s", base.Host)
	}
	return result, nil
}

// sitemapsFromRobots reads robots.txt Sitemap directives.
func (p *Parser) sitemapsFromRobots(ctx context.Context, base *url.URL) []string {
	robotsURL := base.Scheme + "://" + base.Host + "/robots.txt"

	body, err := p.fetch(ctx, robotsURL)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", robotsURL).Msg("robots.txt not available")
		return nil
	}
	defer body.Close()

	var sitemaps []string
	scanner := bufio.NewScanner(io.LimitReader(body, 1024*1024))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) < 8 || !strings.EqualFold(line[:8], "sitemap:") {
			continue
		}
		loc := strings.TrimSpace(line[8:])
		if loc != "" {
			sitemaps = append(sitemaps, loc)
		}
	}
	return sitemaps
}

// expand fetches one sitemap document. Index documents recurse into their
// children up to maxIndexDepth.
func (p *Parser) expand(ctx context.Context, sitemapURL string, depth int, seen map[string]bool, filter *regexp.Regexp, result *Result) error {
	if depth > maxIndexDepth {
		p.logger.Warn().Str("sitemap", sitemapURL).Int("depth", depth).Msg("Sitemap index recursion limit reached")
		return nil
	}
	if seen[sitemapURL] {
		return nil
	}
	seen[sitemapURL] = true

	body, err := p.fetch(ctx, sitemapURL)
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxSitemapBody))
	if err != nil {
		return fmt.Errorf("failed to read sitemap %s: %w", sitemapURL, err)
	}
	result.Sitemaps = append(result.Sitemaps, sitemapURL)

	// A sitemap document is either an index of child sitemaps or a urlset.
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, child := range index.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			if err := p.expand(ctx, loc, depth+1, seen, filter, result); err != nil {
				p.logger.Warn().Err(err).Str("sitemap", loc).Msg("Child sitemap failed")
			}
		}
		return nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("failed to parse sitemap %s: %w", sitemapURL, err)
	}
	for _, u := range set.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		if filter != nil && !filter.MatchString(loc) {
			continue
		}
		result.URLs = append(result.URLs, loc)
	}
	return nil
}

func (p *Parser) fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", p.config.Fetcher.UserAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned %d", rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}
