package models

import "time"

// Freshness restricts search results by publication age.
type Freshness string

const (
	FreshnessNone  Freshness = ""
	FreshnessDay   Freshness = "day"
	FreshnessWeek  Freshness = "week"
	FreshnessMonth Freshness = "month"
	FreshnessYear  Freshness = "year"
)

// SearchDepth selects between a fast lookup and a deeper provider pass.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// SearchRequest describes one web search. Namespace resolution happens in
// the service layer; the request itself is transport-agnostic.
type SearchRequest struct {
	Query          string      `json:"query" validate:"required"`
	MaxResults     int         `json:"max_results" validate:"omitempty,gte=1"`
	Freshness      Freshness   `json:"freshness,omitempty"`
	Language       string      `json:"language,omitempty"`
	Country        string      `json:"country,omitempty"`
	IncludeDomains []string    `json:"include_domains,omitempty"`
	ExcludeDomains []string    `json:"exclude_domains,omitempty"`
	SafeSearch     bool        `json:"safe_search"`
	Depth          SearchDepth `json:"depth,omitempty"`
	SkipCache      bool        `json:"skip_cache"`
}

// EffectiveMaxResults returns MaxResults with the default of 10 applied.
func (r *SearchRequest) EffectiveMaxResults() int {
	if r.MaxResults < 1 {
		return 10
	}
	return r.MaxResults
}

// SearchResult is a single hit from a provider or from the semantic cache.
type SearchResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Snippet       string   `json:"snippet"`
	ExtraSnippets []string `json:"extra_snippets,omitempty"`
	RawContent    string   `json:"raw_content,omitempty"`
	Score         float64  `json:"score,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
}

// SearchResponse wraps results with provenance. FromCache is true when the
// semantic cache short-circuited the live provider.
type SearchResponse struct {
	Results   []SearchResult `json:"results"`
	Provider  string         `json:"provider"`
	FromCache bool           `json:"from_cache"`
	Duration  time.Duration  `json:"duration"`
}

// ProviderCapabilities declares what a search provider supports so services
// can degrade gracefully when a capability is absent.
type ProviderCapabilities struct {
	Freshness    bool `json:"freshness"`
	Language     bool `json:"language"`
	Country      bool `json:"country"`
	DomainFilter bool `json:"domain_filter"`
	RawContent   bool `json:"raw_content"`
	AIAnswer     bool `json:"ai_answer"`
	MaxResults   int  `json:"max_results"`
}
