package models

import (
	"time"
)

// OutputFormat selects the shape of extracted page content.
type OutputFormat string

const (
	OutputFormatHTML     OutputFormat = "html"
	OutputFormatText     OutputFormat = "text"
	OutputFormatMarkdown OutputFormat = "markdown"
)

// PageActionType enumerates the scripted interactions a dynamic fetch can
// perform after navigation.
type PageActionType string

const (
	ActionClick           PageActionType = "click"
	ActionType            PageActionType = "type"
	ActionScroll          PageActionType = "scroll"
	ActionWait            PageActionType = "wait"
	ActionWaitForSelector PageActionType = "wait_for_selector"
)

// PageAction is one step in the ordered action script of a FetchRequest.
// Selector is used by click/type/wait_for_selector, Value by type,
// Pixels by scroll and Millis by wait. DelayMs is an optional pause
// applied after the action completes.
type PageAction struct {
	Type     PageActionType `json:"type"`
	Selector string         `json:"selector,omitempty"`
	Value    string         `json:"value,omitempty"`
	Pixels   int            `json:"pixels,omitempty"`
	Millis   int            `json:"millis,omitempty"`
	DelayMs  int            `json:"delay_ms,omitempty"`
}

// FetchRequest describes a single page fetch. It is immutable after
// construction; fetchers never modify it.
type FetchRequest struct {
	URL             string            `json:"url" validate:"required,url"`
	Fetcher         string            `json:"fetcher,omitempty"` // Explicit fetcher override, bypasses resolution
	RenderJS        bool              `json:"render_js"`
	Timeout         time.Duration     `json:"timeout"`
	WaitNetworkIdle bool              `json:"wait_network_idle"`
	WaitForSelector string            `json:"wait_for_selector,omitempty"`
	IncludeLinks    bool              `json:"include_links"`
	IncludeImages   bool              `json:"include_images"`
	Format          OutputFormat      `json:"format"`
	Headers         map[string]string `json:"headers,omitempty"`
	Cookies         map[string]string `json:"cookies,omitempty"`
	Mobile          bool              `json:"mobile"`
	SkipTLSVerify   bool              `json:"skip_tls_verify"`
	Screenshot      bool              `json:"screenshot"`
	Actions         []PageAction      `json:"actions,omitempty"`
}

// EffectiveTimeout returns the request timeout or the supplied default.
func (r *FetchRequest) EffectiveTimeout(def time.Duration) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return def
}

// EffectiveFormat defaults the output format to markdown, the primary
// shape consumed by the assistant.
func (r *FetchRequest) EffectiveFormat() OutputFormat {
	if r.Format == "" {
		return OutputFormatMarkdown
	}
	return r.Format
}

// FetchResult is the outcome of one fetch. StatusCode 0 flags a transport
// failure; the pipeline returns structured failures, never raw errors, for
// a single bad URL.
type FetchResult struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	RawHTML      string            `json:"raw_html,omitempty"`
	Links        []string          `json:"links,omitempty"`
	Images       []string          `json:"images,omitempty"`
	WordCount    int               `json:"word_count"`
	StatusCode   int               `json:"status_code"`
	FetcherUsed  string            `json:"fetcher_used"`
	Duration     time.Duration     `json:"duration"`
	Screenshot   string            `json:"screenshot,omitempty"`
	ProviderMeta map[string]string `json:"provider_meta,omitempty"`
}

// Failed reports whether the fetch ended in a transport-level failure.
func (r *FetchResult) Failed() bool {
	return r == nil || r.StatusCode == 0
}

// Meta returns the provider-meta map, allocating it on first use.
func (r *FetchResult) Meta() map[string]string {
	if r.ProviderMeta == nil {
		r.ProviderMeta = make(map[string]string)
	}
	return r.ProviderMeta
}
