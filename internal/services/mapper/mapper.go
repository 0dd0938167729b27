// -----------------------------------------------------------------------
// Map Service - breadth-first same-host link discovery for sites without
// a usable sitemap
// -----------------------------------------------------------------------

package mapper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/services/extractor"
)

// Request bounds one site map crawl.
type Request struct {
	URL      string `json:"url" validate:"required,url"`
	MaxDepth int    `json:"max_depth,omitempty"` // Default 2
	Limit    int    `json:"limit,omitempty"`     // Default 100 visited pages
	Filter   string `json:"filter,omitempty"`    // Regex over recorded URLs
}

// Result is the discovered link graph, flattened in visit order.
type Result struct {
	URLs    []string `json:"urls"`
	Visited int      `json:"visited"` // Pages popped off the queue
}

// Service walks a site breadth-first, never leaving the starting host.
type Service struct {
	config    *common.Config
	client    *http.Client
	extractor *extractor.Extractor
	logger    arbor.ILogger
}

// New creates the map service.
func New(config *common.Config, ext *extractor.Extractor, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		extractor: ext,
		logger:    logger,
		client: &http.Client{
			Timeout: config.Crawler.MapTimeout,
		},
	}
}

// Map walks the site from req.URL. Fragments and query strings are
// stripped before deduplication; only links on the starting host are
// followed or recorded. The path filter gates what is recorded, not what
// is expanded, so a non-matching landing page still leads to matching
// pages below it.
func (s *Service) Map(ctx context.Context, req *Request) (*Result, error) {
	start, err := url.Parse(req.URL)
	if err != nil || start.Host == "" {
		return nil, fmt.Errorf("invalid map URL %q", req.URL)
	}

	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	var filter *regexp.Regexp
	if req.Filter != "" {
		filter, err = regexp.Compile(req.Filter)
		if err != nil {
			return nil, fmt.Errorf("invalid map filter %q: %w", req.Filter, err)
		}
	}

	type queued struct {
		url   string
		depth int
	}

	startURL := canonical(start)
	visited := make(map[string]bool)
	enqueued := map[string]bool{startURL: true}
	queue := []queued{{url: startURL, depth: 0}}
	result := &Result{URLs: []string{}}

	for len(queue) > 0 && result.Visited < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := queue[0]
		queue = queue[1:]
		if visited[item.url] || item.depth > maxDepth {
			continue
		}
		visited[item.url] = true
		result.Visited++

		if filter == nil || filter.MatchString(item.url) {
			result.URLs = append(result.URLs, item.url)
		}

		if item.depth >= maxDepth {
			continue
		}

		links, err := s.pageLinks(ctx, item.url)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", item.url).Msg("Map fetch failed, skipping page")
			continue
		}

		for _, link := range links {
			parsed, err := url.Parse(link)
			if err != nil || parsed.Host != start.Host {
				continue
			}
			c := canonical(parsed)
			if enqueued[c] {
				continue
			}
			enqueued[c] = true
			queue = append(queue, queued{url: c, depth: item.depth + 1})
		}
	}

	if len(result.URLs) > limit {
		result.URLs = result.URLs[:limit]
	}
	return result, nil
}

// pageLinks fetches one HTML page and returns its absolute links.
func (s *Service) pageLinks(ctx context.Context, pageURL string) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", s.config.Fetcher.UserAgent)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.Fetcher.MaxBodySize))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	return s.extractor.ExtractLinks(doc, pageURL), nil
}

// canonical strips the fragment and query string and normalizes the
// trailing slash.
func canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	out := c.String()
	return strings.TrimSuffix(out, "/")
}
