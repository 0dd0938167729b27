// -----------------------------------------------------------------------
// Static Fetcher - plain HTTP fetch with extraction, the first and
// cheapest stage of the fetcher chain
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/net/proxy"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/extractor"
	"github.com/noeticlabs/websearch/internal/services/pdf"
)

// TypeStatic names the plain HTTP fetcher in chains and domain rules.
const TypeStatic = "static"

// StaticFetcher performs a plain HTTP GET and extracts content. PDF bodies
// divert through the PDF extractor instead of the HTML pipeline.
type StaticFetcher struct {
	config    *common.Config
	client    *http.Client
	tlsClient *http.Client // Lazily built variant that skips TLS verification
	tlsOnce   sync.Once
	extractor *extractor.Extractor
	pdf       *pdf.Extractor
	logger    arbor.ILogger
}

var _ interfaces.Fetcher = (*StaticFetcher)(nil)

// NewStaticFetcher creates the static fetcher with the configured proxy and
// timeout applied to its HTTP client.
func NewStaticFetcher(config *common.Config, ext *extractor.Extractor, pdfExt *pdf.Extractor, logger arbor.ILogger) (*StaticFetcher, error) {
	transport, err := buildTransport(config.Proxy, false)
	if err != nil {
		return nil, err
	}

	return &StaticFetcher{
		config:    config,
		extractor: ext,
		pdf:       pdfExt,
		logger:    logger,
		client: &http.Client{
			Timeout:   config.Fetcher.RequestTimeout,
			Transport: transport,
		},
	}, nil
}

// buildTransport wires the configured proxy into an http.Transport.
func buildTransport(cfg common.ProxyConfig, skipTLSVerify bool) (*http.Transport, error) {
	transport := &http.Transport{
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	switch cfg.Type {
	case "", "none":
		return transport, nil

	case "http":
		proxyURL, err := url.Parse(ensureScheme(cfg.Address, "http"))
		if err != nil {
			return nil, fmt.Errorf("invalid http proxy address %q: %w", cfg.Address, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		return transport, nil

	case "socks5", "socks4":
		// SOCKS4 servers generally accept the SOCKS5 handshake path used
		// here; a strict SOCKS4-only server will reject the dial.
		dialer, err := proxy.SOCKS5("tcp", cfg.Address, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("invalid socks proxy address %q: %w", cfg.Address, err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported proxy type %q", cfg.Type)
	}
}

func ensureScheme(addr, scheme string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	return scheme + "://" + addr
}

// Type returns the fetcher name used in chains and domain rules.
func (f *StaticFetcher) Type() string {
	return TypeStatic
}

// Supports reports whether the request can be served without a browser.
func (f *StaticFetcher) Supports(req *models.FetchRequest) bool {
	return !req.RenderJS && !req.Screenshot && len(req.Actions) == 0
}

// Fetch performs the HTTP GET and runs extraction. A transport-level
// failure returns an error; any HTTP status produces a result.
func (f *StaticFetcher) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, req.EffectiveTimeout(f.config.Fetcher.RequestTimeout))
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid fetch URL %q: %w", req.URL, err)
	}

	f.applyHeaders(httpReq, req)

	resp, err := f.clientFor(req).Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("static fetch failed for %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.Fetcher.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", req.URL, err)
	}

	result := &models.FetchResult{
		URL:         req.URL,
		StatusCode:  resp.StatusCode,
		FetcherUsed: TypeStatic,
	}
	result.Meta()["content_type"] = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		result.Meta()["final_url"] = resp.Request.URL.String()
	}

	contentType := resp.Header.Get("Content-Type")
	if pdf.IsPDF(contentType, body) {
		text, err := f.pdf.ExtractText(reqCtx, body)
		if err != nil {
			return nil, fmt.Errorf("PDF extraction failed for %s: %w", req.URL, err)
		}
		result.Content = text
		result.WordCount = extractor.WordCount(text)
		result.Meta()["document_type"] = "pdf"
		if meta, err := f.pdf.GetMetadata(reqCtx, body); err == nil {
			result.Meta()["pdf_pages"] = strconv.Itoa(meta.PageCount)
		}
		result.Duration = time.Since(start)
		return result, nil
	}

	extracted, err := f.extractor.Extract(string(body), req.URL, req)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", req.URL, err)
	}

	result.Title = extracted.Title
	result.Content = extracted.Content
	result.Links = extracted.Links
	result.Images = extracted.Images
	result.WordCount = extracted.WordCount
	result.RawHTML = string(body)
	for key, value := range extracted.Meta {
		result.Meta()[key] = value
	}
	result.Duration = time.Since(start)

	f.logger.Debug().
		Str("url", req.URL).
		Int("status", resp.StatusCode).
		Int("word_count", result.WordCount).
		Dur("duration", result.Duration).
		Msg("Static fetch complete")

	return result, nil
}

// clientFor returns the shared client, or a TLS-lenient variant when the
// request asks to skip certificate verification.
func (f *StaticFetcher) clientFor(req *models.FetchRequest) *http.Client {
	if !req.SkipTLSVerify {
		return f.client
	}
	f.tlsOnce.Do(func() {
		transport, err := buildTransport(f.config.Proxy, true)
		if err != nil {
			return
		}
		f.tlsClient = &http.Client{
			Timeout:   f.config.Fetcher.RequestTimeout,
			Transport: transport,
		}
	})
	if f.tlsClient == nil {
		return f.client
	}
	return f.tlsClient
}

func (f *StaticFetcher) applyHeaders(httpReq *http.Request, req *models.FetchRequest) {
	userAgent := f.config.Fetcher.UserAgent
	if req.Mobile {
		userAgent = f.config.Fetcher.MobileUserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	for name, value := range req.Cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}
}
