package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
)

// stubFetcher returns canned results and records invocations.
type stubFetcher struct {
	name     string
	result   *models.FetchResult
	err      error
	calls    int
	supports bool
}

func (s *stubFetcher) Type() string { return s.name }

func (s *stubFetcher) Supports(req *models.FetchRequest) bool { return s.supports }

func (s *stubFetcher) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

var _ interfaces.Fetcher = (*stubFetcher)(nil)

func testConfig() *common.Config {
	return common.NewDefaultConfig()
}

func newTestResolver(t *testing.T, config *common.Config, fetchers ...interfaces.Fetcher) *Resolver {
	t.Helper()
	return NewResolver(config, fetchers, common.GetLogger())
}

func fullResult(name string) *models.FetchResult {
	return &models.FetchResult{
		URL:         "https://example.com/",
		Content:     strings.Repeat("real extracted content ", 20),
		StatusCode:  200,
		FetcherUsed: name,
	}
}

func spaShellResult() *models.FetchResult {
	return &models.FetchResult{
		URL:         "https://app.example.com/",
		Content:     "",
		RawHTML:     `<html><body><div id="__next"></div><script src="/_next/app.js"></script></body></html>`,
		StatusCode:  200,
		FetcherUsed: TypeStatic,
	}
}

func TestResolver_StaticResultAccepted(t *testing.T) {
	static := &stubFetcher{name: TypeStatic, result: fullResult(TypeStatic), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/"})

	require.NoError(t, err)
	assert.Equal(t, TypeStatic, result.FetcherUsed)
	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 0, dynamic.calls)
}

func TestResolver_SPAEscalatesAndRemembersHost(t *testing.T) {
	static := &stubFetcher{name: TypeStatic, result: spaShellResult(), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)

	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/page"})
	require.NoError(t, err)
	assert.Equal(t, TypeDynamic, result.FetcherUsed)
	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 1, dynamic.calls)

	// Second request to the same host goes straight to dynamic.
	_, err = r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/other"})
	require.NoError(t, err)
	assert.Equal(t, 1, static.calls, "static should not be retried for a remembered SPA host")
	assert.Equal(t, 2, dynamic.calls)
	assert.Equal(t, 1, r.MemorySize())
}

func TestResolver_ShortContentEscalates(t *testing.T) {
	static := &stubFetcher{
		name:     TypeStatic,
		supports: true,
		result: &models.FetchResult{
			URL:        "https://example.com/",
			Content:    "tiny",
			RawHTML:    "<html><body>tiny</body></html>",
			StatusCode: 200,
		},
	}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/"})

	require.NoError(t, err)
	assert.Equal(t, TypeDynamic, result.FetcherUsed)
}

func TestResolver_LastChainEntryAcceptedAsIs(t *testing.T) {
	// Only static registered: its SPA-looking result must still be
	// returned because there is nothing to escalate to.
	static := &stubFetcher{name: TypeStatic, result: spaShellResult(), supports: true}

	r := newTestResolver(t, testConfig(), static)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/"})

	require.NoError(t, err)
	assert.Equal(t, TypeStatic, result.FetcherUsed)
}

func TestResolver_ExplicitFetcherBypassesChain(t *testing.T) {
	static := &stubFetcher{name: TypeStatic, result: fullResult(TypeStatic), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{
		URL:     "https://example.com/",
		Fetcher: TypeDynamic,
	})

	require.NoError(t, err)
	assert.Equal(t, TypeDynamic, result.FetcherUsed)
	assert.Equal(t, 0, static.calls)
}

func TestResolver_UnknownExplicitFetcher(t *testing.T) {
	r := newTestResolver(t, testConfig(), &stubFetcher{name: TypeStatic, supports: true})
	_, err := r.Fetch(context.Background(), &models.FetchRequest{
		URL:     "https://example.com/",
		Fetcher: "teleport",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fetcher")
}

func TestResolver_DomainRuleWins(t *testing.T) {
	config := testConfig()
	config.Fetcher.DomainRules = []common.DomainRule{
		{Pattern: "*.example.com", Fetcher: TypeDynamic},
	}

	static := &stubFetcher{name: TypeStatic, result: fullResult(TypeStatic), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, config, static, dynamic)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://APP.Example.COM/page"})

	require.NoError(t, err)
	assert.Equal(t, TypeDynamic, result.FetcherUsed)
	assert.Equal(t, 0, static.calls)
}

func TestResolver_DomainRulesOrdered(t *testing.T) {
	config := testConfig()
	config.Fetcher.DomainRules = []common.DomainRule{
		{Pattern: "**/docs/**", Fetcher: TypeStatic},
		{Pattern: "*.example.com", Fetcher: TypeDynamic},
	}

	static := &stubFetcher{name: TypeStatic, result: fullResult(TypeStatic), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, config, static, dynamic)

	// Both rules match; the first listed wins.
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/docs/intro"})
	require.NoError(t, err)
	assert.Equal(t, TypeStatic, result.FetcherUsed)
	assert.Equal(t, 0, dynamic.calls)
}

func TestCompileGlob(t *testing.T) {
	cases := []struct {
		pattern string
		url     string
		match   bool
	}{
		{"*.example.com", "https://app.example.com/", true},
		{"*.example.com", "https://example.org/", false},
		{"**/api/**", "https://example.com/api/v2/users", true},
		// `*` must not cross a path separator.
		{"example.com/*/intro", "https://example.com/docs/intro", true},
		{"example.com/*/intro", "https://example.com/docs/v2/intro", false},
		// Dots are literal, not regex wildcards.
		{"example.com", "https://examplexcom.net/", false},
	}
	for _, tc := range cases {
		re, err := compileGlob(tc.pattern)
		require.NoError(t, err, tc.pattern)
		assert.Equal(t, tc.match, re.MatchString(tc.url), "%s vs %s", tc.pattern, tc.url)
	}
}

func TestResolver_AllFetchersFail(t *testing.T) {
	static := &stubFetcher{name: TypeStatic, err: errors.New("boom"), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, err: errors.New("also boom"), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)
	_, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchExhausted)
}

func TestResolver_SkipsFetchersThatDoNotSupportRequest(t *testing.T) {
	static := &stubFetcher{name: TypeStatic, result: fullResult(TypeStatic), supports: false}
	dynamic := &stubFetcher{name: TypeDynamic, result: fullResult(TypeDynamic), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic)
	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://example.com/", RenderJS: true})

	require.NoError(t, err)
	assert.Equal(t, TypeDynamic, result.FetcherUsed)
	assert.Equal(t, 0, static.calls)
}

func TestResolver_RememberedFetcherRecheckedForAcceptability(t *testing.T) {
	// The remembered fetcher returns a shell, so the resolver must fall
	// through to the chain instead of trusting the memory.
	static := &stubFetcher{name: TypeStatic, result: spaShellResult(), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: spaShellResult(), supports: true}
	api := &stubFetcher{name: TypeAPI, result: fullResult(TypeAPI), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic, api)
	r.remember("app.example.com", TypeDynamic)

	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, TypeAPI, result.FetcherUsed)
	assert.Equal(t, 1, static.calls, "chain restarts from the top after the memory miss")
	assert.Equal(t, 2, dynamic.calls)
}

func TestResolver_DynamicShellEscalatesToAPI(t *testing.T) {
	// The heuristic applies to every non-terminal stage, not only static.
	static := &stubFetcher{name: TypeStatic, result: spaShellResult(), supports: true}
	dynamic := &stubFetcher{name: TypeDynamic, result: spaShellResult(), supports: true}
	api := &stubFetcher{name: TypeAPI, result: fullResult(TypeAPI), supports: true}

	r := newTestResolver(t, testConfig(), static, dynamic, api)

	result, err := r.Fetch(context.Background(), &models.FetchRequest{URL: "https://app.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, TypeAPI, result.FetcherUsed)
	assert.Equal(t, 1, static.calls)
	assert.Equal(t, 1, dynamic.calls)
	assert.Equal(t, 1, api.calls)
}

func TestLooksLikeSPA(t *testing.T) {
	assert.True(t, looksLikeSPA(spaShellResult()))
	assert.False(t, looksLikeSPA(fullResult(TypeStatic)))

	// Thin error pages escalate like any other shell; the terminal chain
	// entry still reports them as-is.
	assert.True(t, looksLikeSPA(&models.FetchResult{StatusCode: 404, Content: ""}))

	long := strings.Repeat("prose ", 40)
	for _, marker := range []string{
		`<div id="root"></div>`,
		`<div id="__nuxt"></div>`,
		"<noscript>Please enable JavaScript",
		"window.__INITIAL_STATE__",
	} {
		result := &models.FetchResult{
			Content:    long,
			RawHTML:    "<html><body>" + marker + "</body></html>",
			StatusCode: 200,
		}
		assert.True(t, looksLikeSPA(result), marker)
	}
}
