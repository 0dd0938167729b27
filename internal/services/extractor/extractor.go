// -----------------------------------------------------------------------
// Content Extractor - noise removal, main-content selection and
// HTML/text/markdown output shared by the static and dynamic fetch paths
// -----------------------------------------------------------------------

package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/models"
)

// noiseSelectors are removed from the DOM before any extraction. The static
// and dynamic fetchers share this set so both paths produce identical
// output quality.
var noiseSelectors = []string{
	"nav", "header", "footer", "aside",
	".advertisement", ".ad", ".ads", ".adsbygoogle", "[data-ad]", "[data-ad-slot]",
	".cookie-banner", ".cookie-consent", "#cookie-banner", ".cookie-notice", ".gdpr-banner",
	".popup", ".modal", ".overlay",
	".social-share", ".share-buttons", ".social-links",
	".related-posts", ".related-articles",
	".newsletter", ".newsletter-signup", ".subscribe-form",
	"#comments", ".comments", ".comment-section",
	"script", "style", "noscript",
	`iframe[src*="ads"]`, `iframe[src*="doubleclick"]`, `iframe[src*="googlesyndication"]`,
}

// mainSelectors locate the primary content root, tried in priority order.
var mainSelectors = []string{"main", "article", "[role=main]", ".content", ".post-content", "#content"}

// Extracted is the output of a full extraction pass.
type Extracted struct {
	Title     string
	Content   string
	Links     []string
	Images    []string
	Meta      map[string]string
	WordCount int
}

// Extractor converts raw HTML documents into clean content.
type Extractor struct {
	logger arbor.ILogger
}

// New creates a content extractor.
func New(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract runs the full pipeline against rendered HTML: noise removal,
// main-element selection, format conversion and optional link/image
// harvesting.
func (e *Extractor) Extract(rawHTML, baseURL string, req *models.FetchRequest) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	out := &Extracted{
		Title: extractTitle(doc),
		Meta:  extractMetadata(doc),
	}

	if req.IncludeLinks {
		out.Links = e.ExtractLinks(doc, baseURL)
	}
	if req.IncludeImages {
		out.Images = e.ExtractImages(doc, baseURL)
	}

	content, err := e.ExtractMainContent(doc, req.EffectiveFormat(), baseURL)
	if err != nil {
		return nil, err
	}
	out.Content = content
	out.WordCount = WordCount(content)

	return out, nil
}

// extractTitle prefers the document title, falling back to Open Graph,
// first heading and Twitter Card sources for pages that omit one.
func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if twitterTitle, ok := doc.Find("meta[name='twitter:title']").Attr("content"); ok {
		return strings.TrimSpace(twitterTitle)
	}
	return ""
}

// extractMetadata collects page-level metadata from the document head:
// meta description, declared language and the canonical URL. Absent tags
// leave their keys unset.
func extractMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)

	if description, ok := doc.Find("meta[name='description']").Attr("content"); ok && strings.TrimSpace(description) != "" {
		meta["description"] = strings.TrimSpace(description)
	} else if ogDescription, ok := doc.Find("meta[property='og:description']").Attr("content"); ok && strings.TrimSpace(ogDescription) != "" {
		meta["description"] = strings.TrimSpace(ogDescription)
	}
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		meta["language"] = lang
	}
	if canonical, ok := doc.Find("link[rel='canonical']").Attr("href"); ok && canonical != "" {
		meta["canonical_url"] = canonical
	}

	return meta
}

// ExtractMainContent removes noise, selects the main element and renders it
// in the requested format. The operation is idempotent over format: the
// result never contains scripts, styles or noise-selected elements.
func (e *Extractor) ExtractMainContent(doc *goquery.Document, format models.OutputFormat, baseURL string) (string, error) {
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var root *goquery.Selection
	for _, sel := range mainSelectors {
		if match := doc.Find(sel).First(); match.Length() > 0 {
			root = match
			break
		}
	}
	if root == nil {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return cleanWhitespace(doc.Text()), nil
	}

	switch format {
	case models.OutputFormatHTML:
		html, err := root.Html()
		if err != nil {
			return "", fmt.Errorf("failed to serialize HTML: %w", err)
		}
		return strings.TrimSpace(html), nil

	case models.OutputFormatText:
		return cleanWhitespace(root.Text()), nil

	default:
		html, err := goquery.OuterHtml(root)
		if err != nil {
			return "", fmt.Errorf("failed to serialize HTML: %w", err)
		}
		return e.toMarkdown(html, baseURL)
	}
}

// toMarkdown converts cleaned HTML using the shared converter. Relative
// links resolve against baseURL, keeping its scheme; the converter's
// default resolution forces http and only understands a bare host.
func (e *Extractor) toMarkdown(html, baseURL string) (string, error) {
	base, baseErr := url.Parse(baseURL)

	opts := &md.Options{
		GetAbsoluteURL: func(selec *goquery.Selection, rawURL string, domain string) string {
			if baseErr != nil || base.Host == "" {
				return rawURL
			}
			ref, err := url.Parse(rawURL)
			if err != nil || ref.Scheme == "data" {
				return rawURL
			}
			return base.ResolveReference(ref).String()
		},
	}

	converter := md.NewConverter(md.DomainFromURL(baseURL), true, opts)
	converter.Use(plugin.Table())
	converter.AddRules(definitionListRules()...)

	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// definitionListRules maps dl/dt/dd to bold-term lines followed by an
// indented definition, a shape the converter does not handle natively.
func definitionListRules() []md.Rule {
	return []md.Rule{
		{
			Filter: []string{"dt"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				text := strings.TrimSpace(content)
				if text == "" {
					return md.String("")
				}
				return md.String("\n**" + text + "**\n")
			},
		},
		{
			Filter: []string{"dd"},
			Replacement: func(content string, selec *goquery.Selection, opt *md.Options) *string {
				text := strings.TrimSpace(content)
				if text == "" {
					return md.String("")
				}
				return md.String(": " + text + "\n")
			},
		},
	}
}

// ExtractLinks returns deduplicated absolute URLs from anchor tags.
func (e *Extractor) ExtractLinks(doc *goquery.Document, baseURL string) []string {
	return e.collectURLs(doc, baseURL, "a[href]", "href")
}

// ExtractImages returns deduplicated absolute URLs from img tags.
func (e *Extractor) ExtractImages(doc *goquery.Document, baseURL string) []string {
	return e.collectURLs(doc, baseURL, "img[src]", "src")
}

func (e *Extractor) collectURLs(doc *goquery.Document, baseURL, selector, attr string) []string {
	parsedBase, err := url.Parse(baseURL)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn().Err(err).Str("base_url", baseURL).Msg("Failed to parse base URL")
		}
		return []string{}
	}

	seen := make(map[string]bool)
	urls := []string{}

	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr(attr)
		if !ok || raw == "" {
			return
		}
		if strings.HasPrefix(raw, "javascript:") ||
			strings.HasPrefix(raw, "#") ||
			strings.HasPrefix(raw, "mailto:") ||
			strings.HasPrefix(raw, "tel:") ||
			strings.HasPrefix(raw, "data:") {
			return
		}

		parsed, err := url.Parse(raw)
		if err != nil {
			return
		}
		absolute := parsedBase.ResolveReference(parsed)
		if absolute.Scheme != "http" && absolute.Scheme != "https" {
			return
		}
		absolute.Fragment = ""

		s := absolute.String()
		if !seen[s] {
			seen[s] = true
			urls = append(urls, s)
		}
	})

	return urls
}

// WordCount counts whitespace-delimited tokens; blank input counts zero.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

var (
	spaceRegex   = regexp.MustCompile(`[ \t]+`)
	newlineRegex = regexp.MustCompile(`\n{3,}`)
)

// cleanWhitespace collapses runs of spaces and blank lines while keeping
// paragraph separation.
func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = newlineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
