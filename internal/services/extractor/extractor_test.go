package extractor

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noeticlabs/websearch/internal/models"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Release Notes</title></head>
<body>
	<nav><a href="/home">Home</a></nav>
	<div class="cookie-banner">We use cookies</div>
	<script>window.track = 1;</script>
	<article>
		<h1>Version 2.0</h1>
		<p>The parser is <strong>twice as fast</strong>.</p>
		<pre><code class="language-go">fmt.Println("hi")</code></pre>
		<a href="/docs/migration">Migration guide</a>
		<img src="/img/chart.png" alt="benchmark">
	</article>
	<footer>Copyright</footer>
</body>
</html>`

func TestExtract_Markdown(t *testing.T) {
	e := New(nil)

	result, err := e.Extract(samplePage, "https://example.com/releases", &models.FetchRequest{
		URL:           "https://example.com/releases",
		Format:        models.OutputFormatMarkdown,
		IncludeLinks:  true,
		IncludeImages: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Release Notes", result.Title)
	assert.Contains(t, result.Content, "# Version 2.0")
	assert.Contains(t, result.Content, "**twice as fast**")
	assert.Contains(t, result.Content, "```go")
	assert.NotContains(t, result.Content, "window.track")
	assert.NotContains(t, result.Content, "We use cookies")
	assert.NotContains(t, result.Content, "Copyright")
	assert.Greater(t, result.WordCount, 0)
}

func TestExtract_TextFormat(t *testing.T) {
	e := New(nil)

	result, err := e.Extract(samplePage, "https://example.com/", &models.FetchRequest{
		URL:    "https://example.com/",
		Format: models.OutputFormatText,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Content, "Version 2.0")
	assert.NotContains(t, result.Content, "<h1>")
	assert.NotContains(t, result.Content, "window.track")
}

func TestExtract_HTMLFormatKeepsTags(t *testing.T) {
	e := New(nil)

	result, err := e.Extract(samplePage, "https://example.com/", &models.FetchRequest{
		URL:    "https://example.com/",
		Format: models.OutputFormatHTML,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Content, "<h1>")
	assert.NotContains(t, result.Content, "<script>")
	assert.NotContains(t, result.Content, "cookie-banner")
}

func TestExtract_DefaultFormatIsMarkdown(t *testing.T) {
	e := New(nil)

	result, err := e.Extract(samplePage, "https://example.com/", &models.FetchRequest{URL: "https://example.com/"})
	require.NoError(t, err)
	assert.Contains(t, result.Content, "# Version 2.0")
}

func TestExtract_MarkdownRoundTripsBlockElements(t *testing.T) {
	page := `<html><head><title>Blocks</title></head><body><article>
		<h2>Usage</h2>
		<ul><li>first item</li><li>second item</li></ul>
		<ol><li>step one</li><li>step two</li></ol>
		<blockquote>quoted wisdom</blockquote>
		<p>Read the <a href="/docs/full">full docs</a> for details.</p>
	</article></body></html>`

	result, err := New(nil).Extract(page, "https://example.com/guide", &models.FetchRequest{
		URL:    "https://example.com/guide",
		Format: models.OutputFormatMarkdown,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Content, "## Usage")
	assert.Contains(t, result.Content, "- first item")
	assert.Contains(t, result.Content, "- second item")
	assert.Contains(t, result.Content, "1. step one")
	assert.Contains(t, result.Content, "2. step two")
	assert.Contains(t, result.Content, "> quoted wisdom")
	assert.Contains(t, result.Content, "[full docs](https://example.com/docs/full)")
}

func TestExtract_MarkdownResolvesRelativeLinks(t *testing.T) {
	page := `<html><head><title>Links</title></head><body><article>
		<p>See the <a href="/docs/full">root-relative</a> page,
		the <a href="sibling">path-relative</a> page,
		the <a href="https://other.example/page">absolute</a> page
		and the <a href="//cdn.example/asset">scheme-relative</a> one.</p>
	</article></body></html>`

	result, err := New(nil).Extract(page, "https://example.com/guide/intro", &models.FetchRequest{
		URL:    "https://example.com/guide/intro",
		Format: models.OutputFormatMarkdown,
	})
	require.NoError(t, err)

	assert.Contains(t, result.Content, "[root-relative](https://example.com/docs/full)")
	assert.Contains(t, result.Content, "[path-relative](https://example.com/guide/sibling)")
	assert.Contains(t, result.Content, "[absolute](https://other.example/page)")
	assert.Contains(t, result.Content, "[scheme-relative](https://cdn.example/asset)")
}

func TestExtract_PageMetadata(t *testing.T) {
	page := `<!DOCTYPE html>
<html lang="en">
<head>
	<title>API Reference</title>
	<meta name="description" content="Endpoints, parameters and examples.">
	<link rel="canonical" href="https://example.com/docs/api">
</head>
<body><main><p>GET /v1/things</p></main></body>
</html>`

	result, err := New(nil).Extract(page, "https://example.com/docs/api?ref=nav", &models.FetchRequest{
		URL:    "https://example.com/docs/api?ref=nav",
		Format: models.OutputFormatText,
	})
	require.NoError(t, err)

	assert.Equal(t, "API Reference", result.Title)
	assert.Equal(t, "Endpoints, parameters and examples.", result.Meta["description"])
	assert.Equal(t, "en", result.Meta["language"])
	assert.Equal(t, "https://example.com/docs/api", result.Meta["canonical_url"])
}

func TestExtract_TitleFallsBackToOpenGraph(t *testing.T) {
	page := `<html><head><meta property="og:title" content="Shared Title"><meta property="og:description" content="From the share card."></head><body><p>body</p></body></html>`

	result, err := New(nil).Extract(page, "https://example.com/", &models.FetchRequest{
		URL:    "https://example.com/",
		Format: models.OutputFormatText,
	})
	require.NoError(t, err)

	assert.Equal(t, "Shared Title", result.Title)
	assert.Equal(t, "From the share card.", result.Meta["description"])
}

func TestExtractLinks_AbsoluteAndDeduplicated(t *testing.T) {
	html := `<body>
		<a href="/a">one</a>
		<a href="/a">dup</a>
		<a href="https://other.com/b">two</a>
		<a href="javascript:void(0)">js</a>
		<a href="#section">anchor</a>
		<a href="mailto:x@y.com">mail</a>
	</body>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	links := New(nil).ExtractLinks(doc, "https://example.com/page")
	assert.Equal(t, []string{"https://example.com/a", "https://other.com/b"}, links)
}

func TestExtractImages_ResolvesRelative(t *testing.T) {
	html := `<body><img src="/img/a.png"><img src="b.png"><img src="data:image/png;base64,xx"></body>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	images := New(nil).ExtractImages(doc, "https://example.com/dir/page")
	assert.Equal(t, []string{
		"https://example.com/img/a.png",
		"https://example.com/dir/b.png",
	}, images)
}

func TestExtractMainContent_FallsBackToBody(t *testing.T) {
	html := `<body><p>No main element here.</p></body>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	content, err := New(nil).ExtractMainContent(doc, models.OutputFormatText, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "No main element here.", content)
}

func TestExtractMainContent_PrefersFirstMatch(t *testing.T) {
	html := `<body>
		<div class="content">Secondary</div>
		<main>Primary</main>
	</body>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	content, err := New(nil).ExtractMainContent(doc, models.OutputFormatText, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Primary", content)
}

func TestWordCount(t *testing.T) {
	assert.Equal(t, 0, WordCount(""))
	assert.Equal(t, 0, WordCount("   \n\t "))
	assert.Equal(t, 4, WordCount("one two\nthree\tfour"))
}

func TestCleanWhitespace(t *testing.T) {
	in := "  a   b  \n\n\n\n  c  "
	assert.Equal(t, "a b\n\nc", cleanWhitespace(in))
}
