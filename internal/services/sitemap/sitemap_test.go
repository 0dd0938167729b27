package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/common"
)

func newTestParser() *Parser {
	return New(common.NewDefaultConfig(), common.GetLogger())
}

func urlsetXML(locs ...string) string {
	out := `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`
	for _, loc := range locs {
		out += "<url><loc>" + loc + "</loc></url>"
	}
	return out + "</urlset>"
}

func TestDiscover_ViaRobotsTxt(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nSitemap: %s/custom-sitemap.xml\n", server.URL)
	})
	mux.HandleFunc("/custom-sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/a", server.URL+"/b"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/a", server.URL + "/b"}, result.URLs)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, []string{server.URL + "/custom-sitemap.xml"}, result.Sitemaps)
}

func TestDiscover_FallsBackToSitemapXML(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/page"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/page"}, result.URLs)
}

func TestDiscover_FallsBackToSitemapIndexXML(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	// No robots.txt and no /sitemap.xml; only the second well-known path.
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/pages.xml</loc></sitemap></sitemapindex>`, server.URL)
	})
	mux.HandleFunc("/pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/page"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/page"}, result.URLs)
}

func TestDiscover_SitemapIndexRecursion(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/child-1.xml</loc></sitemap><sitemap><loc>%s/child-2.xml</loc></sitemap></sitemapindex>`, server.URL, server.URL)
	})
	mux.HandleFunc("/child-1.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/one"))
	})
	mux.HandleFunc("/child-2.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(server.URL+"/two"))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{server.URL + "/one", server.URL + "/two"}, result.URLs)
	assert.Len(t, result.Sitemaps, 3)
}

func TestDiscover_IndexCycleTerminates(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		// Points back at itself.
		fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex><sitemap><loc>%s/sitemap.xml</loc></sitemap></sitemapindex>`, server.URL)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Empty(t, result.URLs)
}

func TestDiscover_FilterAndLimit(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, urlsetXML(
			server.URL+"/docs/a",
			server.URL+"/docs/b",
			server.URL+"/docs/c",
			server.URL+"/blog/x",
		))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	result, err := newTestParser().Discover(context.Background(), &Request{
		URL:    server.URL,
		Filter: `/docs/`,
		Limit:  2,
	})
	require.NoError(t, err)
	assert.Len(t, result.URLs, 2)
	assert.Equal(t, 3, result.Total)
}

func TestDiscover_InvalidFilterRegex(t *testing.T) {
	_, err := newTestParser().Discover(context.Background(), &Request{
		URL:    "https://example.com",
		Filter: "(",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter regex")
}

func TestDiscover_NoSitemapAnywhere(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestParser().Discover(context.Background(), &Request{URL: server.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sitemap found")
}
