// -----------------------------------------------------------------------
// Brave Search Provider - the keyed API alternative to scraping, with
// freshness, country and extra-snippet support
// -----------------------------------------------------------------------

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// TypeBrave names the Brave Search API provider.
const TypeBrave = "brave"

const braveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider calls the Brave Search REST API.
type BraveProvider struct {
	config   *common.Config
	client   *http.Client
	limiter  *rate.Limiter
	endpoint string
	logger   arbor.ILogger
}

var _ interfaces.SearchProvider = (*BraveProvider)(nil)

// NewBraveProvider creates the Brave provider; it requires an API key.
func NewBraveProvider(config *common.Config, logger arbor.ILogger) (*BraveProvider, error) {
	if config.Search.BraveAPIKey == "" {
		return nil, fmt.Errorf("brave provider requires an API key (set BRAVE_API_KEY)")
	}

	interval, err := time.ParseDuration(config.Search.RateLimit)
	if err != nil || interval <= 0 {
		interval = time.Second
	}
	timeout, err := time.ParseDuration(config.Search.RequestTimeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BraveProvider{
		config:   config,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		client:   &http.Client{Timeout: timeout},
		endpoint: braveEndpoint,
		logger:   logger,
	}, nil
}

// Type returns the provider name.
func (p *BraveProvider) Type() string {
	return TypeBrave
}

// Capabilities reports the API surface Brave exposes. Domain filters ride
// along as site: operators in the query itself.
func (p *BraveProvider) Capabilities() models.ProviderCapabilities {
	return models.ProviderCapabilities{
		Freshness:    true,
		Language:     true,
		Country:      true,
		DomainFilter: true,
		MaxResults:   20,
	}
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title         string   `json:"title"`
			URL           string   `json:"url"`
			Description   string   `json:"description"`
			PageAge       string   `json:"page_age"`
			ExtraSnippets []string `json:"extra_snippets"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs the query against the Brave API.
func (p *BraveProvider) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", buildQuery(req))
	params.Set("count", strconv.Itoa(req.EffectiveMaxResults()))
	if f := braveFreshness(req.Freshness); f != "" {
		params.Set("freshness", f)
	}
	if req.Country != "" {
		params.Set("country", req.Country)
	}
	if req.Language != "" {
		params.Set("search_lang", req.Language)
	}
	if req.SafeSearch {
		params.Set("safesearch", "strict")
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("X-Subscription-Token", p.config.Search.BraveAPIKey)

		resp, err = p.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("brave search failed: %w", err)
		}

		// Auth and throttle responses get one retry after a pause.
		if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusTooManyRequests) && attempt == 0 {
			resp.Body.Close()
			p.logger.Warn().Int("status", resp.StatusCode).Str("query", req.Query).Msg("Brave API rejected the request, retrying once")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
		break
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned %d", resp.StatusCode)
	}

	var payload braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	results := make([]models.SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, models.SearchResult{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Description,
			ExtraSnippets: r.ExtraSnippets,
			PublishedDate: r.PageAge,
		})
	}

	return &models.SearchResponse{
		Results:  results,
		Provider: TypeBrave,
		Duration: time.Since(start),
	}, nil
}

func braveFreshness(f models.Freshness) string {
	switch f {
	case models.FreshnessDay:
		return "pd"
	case models.FreshnessWeek:
		return "pw"
	case models.FreshnessMonth:
		return "pm"
	case models.FreshnessYear:
		return "py"
	default:
		return ""
	}
}
