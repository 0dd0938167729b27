// -----------------------------------------------------------------------
// API Fetcher - remote reader-service fallback, the last stage of the
// fetcher chain for pages neither HTTP nor a local browser can render
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/extractor"
)

// TypeAPI names the remote reader fetcher.
const TypeAPI = "api"

// defaultReaderBase is a public text-extraction proxy: GET <base><url>
// returns the page as markdown.
const defaultReaderBase = "https://r.jina.ai/"

// APIFetcher delegates rendering to a remote reader service. It needs no
// local browser, so it closes the chain for hosts that defeat both the
// static and dynamic paths.
type APIFetcher struct {
	config  *common.Config
	client  *http.Client
	baseURL string
	logger  arbor.ILogger
}

var _ interfaces.Fetcher = (*APIFetcher)(nil)

// NewAPIFetcher creates the reader-service fetcher.
func NewAPIFetcher(config *common.Config, logger arbor.ILogger) *APIFetcher {
	return &APIFetcher{
		config:  config,
		baseURL: defaultReaderBase,
		client: &http.Client{
			Timeout: config.Fetcher.RequestTimeout,
		},
		logger: logger,
	}
}

// Type returns the fetcher name used in chains and domain rules.
func (f *APIFetcher) Type() string {
	return TypeAPI
}

// Supports declines requests that need local browser features; the remote
// reader cannot run actions or take screenshots.
func (f *APIFetcher) Supports(req *models.FetchRequest) bool {
	return !req.Screenshot && len(req.Actions) == 0
}

// Fetch retrieves the reader-rendered page. The reader returns markdown,
// which also serves the text format; HTML output is not available on this
// path.
func (f *APIFetcher) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, req.EffectiveTimeout(f.config.Fetcher.RequestTimeout))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.baseURL+req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid reader URL for %s: %w", req.URL, err)
	}
	httpReq.Header.Set("Accept", "text/markdown, text/plain")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reader fetch failed for %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.Fetcher.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read reader response for %s: %w", req.URL, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("reader service returned %d for %s", resp.StatusCode, req.URL)
	}

	content := string(body)
	result := &models.FetchResult{
		URL:         req.URL,
		Content:     content,
		WordCount:   extractor.WordCount(content),
		StatusCode:  resp.StatusCode,
		FetcherUsed: TypeAPI,
		Duration:    time.Since(start),
	}
	result.Meta()["reader_base"] = f.baseURL

	f.logger.Debug().
		Str("url", req.URL).
		Int("word_count", result.WordCount).
		Dur("duration", result.Duration).
		Msg("API fetch complete")

	return result, nil
}
