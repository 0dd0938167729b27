// -----------------------------------------------------------------------
// Fetcher Resolver - picks the fetcher for a URL: explicit override,
// configured domain rules, learned domain memory, then the fallback chain
// with SPA detection promoting hosts to the dynamic path
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// ErrFetchExhausted reports that every fetcher in the chain failed.
var ErrFetchExhausted = errors.New("all fetchers in the chain failed")

// ErrUnknownFetcher reports an explicitly requested fetcher name with no
// registration. Unlike transport failures this is a caller mistake.
var ErrUnknownFetcher = errors.New("unknown fetcher")

// ErrNoSupportingFetcher reports a request no registered fetcher can serve,
// such as a screenshot request with no dynamic fetcher in the chain.
var ErrNoSupportingFetcher = errors.New("no fetcher supports request")

// minContentLength is the extracted-content size below which a result is
// treated as an unrendered shell.
const minContentLength = 100

// spaMarkers identify client-rendered shells in raw HTML. A match escalates
// the host to the next fetcher in the chain.
var spaMarkers = []string{
	`<div id="root"></div>`,
	`<div id="__next"></div>`,
	`<div id="__next">`,
	`<div id="app"></div>`,
	`<div id="__nuxt"></div>`,
	"<noscript>You need to enable JavaScript",
	"<noscript>Please enable JavaScript",
	"<noscript>This app works best with JavaScript enabled",
	"window.__INITIAL_STATE__",
	"window.__NEXT_DATA__",
}

// domainRule is a compiled configured rule. Rules are checked in config
// order; the first pattern matching the URL wins.
type domainRule struct {
	re      *regexp.Regexp
	fetcher string
}

// Resolver routes fetch requests through the fetcher chain and remembers
// which fetcher a hostname needed so later requests skip the failed stages.
type Resolver struct {
	config   *common.Config
	fetchers map[string]interfaces.Fetcher
	chain    []string
	rules    []domainRule
	logger   arbor.ILogger

	mu     sync.RWMutex
	memory map[string]string // hostname -> fetcher name
}

// NewResolver creates the resolver over the registered fetchers. Chain
// entries without a registered fetcher are skipped at resolution time;
// domain rules that do not compile are dropped with a warning.
func NewResolver(config *common.Config, fetchers []interfaces.Fetcher, logger arbor.ILogger) *Resolver {
	byName := make(map[string]interfaces.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Type()] = f
	}

	chain := config.Fetcher.Chain
	if len(chain) == 0 {
		chain = []string{TypeStatic, TypeDynamic, TypeAPI}
	}

	rules := make([]domainRule, 0, len(config.Fetcher.DomainRules))
	for _, rule := range config.Fetcher.DomainRules {
		re, err := compileGlob(rule.Pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", rule.Pattern).Msg("Ignoring invalid domain rule")
			continue
		}
		rules = append(rules, domainRule{re: re, fetcher: rule.Fetcher})
	}

	return &Resolver{
		config:   config,
		fetchers: byName,
		chain:    chain,
		rules:    rules,
		logger:   logger,
		memory:   make(map[string]string),
	}
}

// Fetch resolves and executes the request. Resolution order: explicit
// fetcher on the request, configured domain rules, learned domain memory,
// then the fallback chain.
func (r *Resolver) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	hostname := hostnameOf(req.URL)

	if req.Fetcher != "" {
		f, ok := r.fetchers[req.Fetcher]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFetcher, req.Fetcher)
		}
		return f.Fetch(ctx, req)
	}

	if name := r.matchDomainRule(req.URL); name != "" {
		if f, ok := r.fetchers[name]; ok {
			r.logger.Debug().Str("url", req.URL).Str("fetcher", name).Msg("Domain rule matched")
			return f.Fetch(ctx, req)
		}
	}

	if name := r.remembered(hostname); name != "" {
		if f, ok := r.fetchers[name]; ok && f.Supports(req) {
			r.logger.Debug().Str("hostname", hostname).Str("fetcher", name).Msg("Using remembered fetcher")
			result, err := f.Fetch(ctx, req)
			if err == nil && !looksLikeSPA(result) {
				return result, nil
			}
			if err != nil {
				r.logger.Warn().Err(err).Str("hostname", hostname).Msg("Remembered fetcher failed, falling through to chain")
			} else {
				r.logger.Debug().Str("hostname", hostname).Msg("Remembered fetcher returned a shell, falling through to chain")
			}
		}
	}

	return r.fetchChain(ctx, req, hostname)
}

// fetchChain walks the fallback chain. A non-terminal result that looks
// like an unrendered SPA shell escalates to the next stage; the final
// stage's result is accepted as-is.
func (r *Resolver) fetchChain(ctx context.Context, req *models.FetchRequest, hostname string) (*models.FetchResult, error) {
	var lastErr error

	active := make([]interfaces.Fetcher, 0, len(r.chain))
	for _, name := range r.chain {
		f, ok := r.fetchers[name]
		if !ok || !f.Supports(req) {
			continue
		}
		active = append(active, f)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSupportingFetcher, req.URL)
	}

	for i, f := range active {
		last := i == len(active)-1

		result, err := f.Fetch(ctx, req)
		if err != nil {
			lastErr = err
			r.logger.Warn().Err(err).Str("url", req.URL).Str("fetcher", f.Type()).Msg("Fetcher failed, trying next in chain")
			continue
		}

		if !last && looksLikeSPA(result) {
			r.logger.Debug().Str("url", req.URL).Str("fetcher", f.Type()).Msg("Result looks client-rendered, escalating")
			r.remember(hostname, active[i+1].Type())
			continue
		}

		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchExhausted, req.URL, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrFetchExhausted, req.URL)
}

// looksLikeSPA flags results whose extracted content is too small to be
// real or whose raw HTML carries a known client-render marker.
func looksLikeSPA(result *models.FetchResult) bool {
	if len(strings.TrimSpace(result.Content)) < minContentLength {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(result.RawHTML, marker) {
			return true
		}
	}
	return false
}

// matchDomainRule checks configured rules against the full URL, in order.
func (r *Resolver) matchDomainRule(rawURL string) string {
	for _, rule := range r.rules {
		if rule.re.MatchString(rawURL) {
			return rule.fetcher
		}
	}
	return ""
}

// compileGlob translates a domain-rule glob into a case-insensitive regexp:
// `**` matches anything, `*` matches within one path segment, every other
// character is literal.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)")
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString(`[^/]*`)
			}
			continue
		}
		sb.WriteString(regexp.QuoteMeta(string(pattern[i])))
	}
	return regexp.Compile(sb.String())
}

func (r *Resolver) remembered(hostname string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.memory[hostname]
}

func (r *Resolver) remember(hostname, fetcherName string) {
	if hostname == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memory[hostname] = fetcherName
}

// MemorySize reports how many hostnames have a learned fetcher, for the
// stats endpoint.
func (r *Resolver) MemorySize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memory)
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
