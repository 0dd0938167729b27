// -----------------------------------------------------------------------
// Dynamic Fetcher - chromedp-rendered fetch for JavaScript-heavy pages,
// with scripted page actions and a static fallback on browser failure
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
	"github.com/noeticlabs/websearch/internal/interfaces"
	"github.com/noeticlabs/websearch/internal/models"
	"github.com/noeticlabs/websearch/internal/services/extractor"
)

// TypeDynamic names the browser-rendered fetcher.
const TypeDynamic = "dynamic"

// stealthScript masks the most common headless-detection signals before any
// page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);
`

// networkSettle is how long a wait_network_idle request idles after the
// load event before reading the DOM.
const networkSettle = 2 * time.Second

// DynamicFetcher renders pages in a pooled browser. Any browser-level
// failure falls back to the static fetcher so a broken Chrome install
// degrades service instead of breaking it.
type DynamicFetcher struct {
	config    *common.Config
	pool      *BrowserPool
	extractor *extractor.Extractor
	fallback  *StaticFetcher
	captcha   interfaces.CaptchaSolver
	logger    arbor.ILogger
	available bool
}

var _ interfaces.Fetcher = (*DynamicFetcher)(nil)

// NewDynamicFetcher creates the dynamic fetcher. The browser binary is
// probed once here; without one every fetch goes straight to the static
// fallback. The captcha solver is optional.
func NewDynamicFetcher(config *common.Config, pool *BrowserPool, ext *extractor.Extractor, fallback *StaticFetcher, captcha interfaces.CaptchaSolver, logger arbor.ILogger) *DynamicFetcher {
	available := DetectBrowserBinary(config.Browser.ExecPath) != ""
	if !available {
		logger.Warn().Msg("No browser binary found; dynamic fetches will use the static path")
	}
	return &DynamicFetcher{
		config:    config,
		pool:      pool,
		extractor: ext,
		fallback:  fallback,
		captcha:   captcha,
		logger:    logger,
		available: available,
	}
}

// Type returns the fetcher name used in chains and domain rules.
func (f *DynamicFetcher) Type() string {
	return TypeDynamic
}

// Supports accepts everything; the dynamic path is a superset of static.
func (f *DynamicFetcher) Supports(req *models.FetchRequest) bool {
	return true
}

// Fetch renders the page and extracts content. Any browser error triggers
// the static fallback for this single request.
func (f *DynamicFetcher) Fetch(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	if !f.available {
		return f.fallbackFetch(ctx, req, fmt.Errorf("no browser binary available"))
	}

	result, err := f.render(ctx, req)
	if err != nil {
		return f.fallbackFetch(ctx, req, err)
	}
	return result, nil
}

// fallbackFetch delegates to the static fetcher when the browser path
// failed. Screenshots and page actions are lost; the cause is recorded in
// the result's provider metadata.
func (f *DynamicFetcher) fallbackFetch(ctx context.Context, req *models.FetchRequest, cause error) (*models.FetchResult, error) {
	if f.fallback == nil {
		return nil, cause
	}

	f.logger.Warn().Err(cause).Str("url", req.URL).Msg("Dynamic fetch failed, falling back to static")

	result, err := f.fallback.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dynamic fetch failed (%v) and static fallback failed: %w", cause, err)
	}
	result.Meta()["dynamic_fallback"] = cause.Error()
	return result, nil
}

func (f *DynamicFetcher) render(ctx context.Context, req *models.FetchRequest) (*models.FetchResult, error) {
	start := time.Now()

	inst, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	healthy := true
	defer func() { f.pool.Release(inst, healthy) }()

	// Tab per request keeps cookies and DOM state from leaking between
	// fetches sharing a browser instance.
	tabCtx, tabCancel := chromedp.NewContext(inst.Ctx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, req.EffectiveTimeout(f.config.Fetcher.RequestTimeout))
	defer cancel()

	captchaDetected := false
	if err := chromedp.Run(runCtx, f.navigateTasks(req)); err != nil {
		healthy = false
		return nil, fmt.Errorf("browser rendering failed for %s: %w", req.URL, err)
	}

	// CAPTCHA hook runs between navigation and the action script. A failed
	// solve is logged and the fetch continues with whatever rendered.
	if f.captcha != nil {
		detected, detectErr := f.captcha.Detect(runCtx)
		if detectErr != nil {
			f.logger.Warn().Err(detectErr).Str("url", req.URL).Msg("CAPTCHA detection failed")
		} else if detected {
			captchaDetected = true
			if solveErr := f.captcha.Solve(runCtx); solveErr != nil {
				f.logger.Warn().Err(solveErr).Str("url", req.URL).Msg("CAPTCHA solve failed, continuing")
			} else if err := chromedp.Run(runCtx, f.navigateTasks(req)); err != nil {
				healthy = false
				return nil, fmt.Errorf("post-captcha reload failed for %s: %w", req.URL, err)
			}
		}
	}

	var actionTasks chromedp.Tasks
	for _, action := range req.Actions {
		task, err := pageActionTask(action)
		if err != nil {
			return nil, err
		}
		actionTasks = append(actionTasks, task)
		if action.DelayMs > 0 {
			actionTasks = append(actionTasks, chromedp.Sleep(time.Duration(action.DelayMs)*time.Millisecond))
		}
	}
	if len(actionTasks) > 0 {
		if err := chromedp.Run(runCtx, actionTasks); err != nil {
			healthy = false
			return nil, fmt.Errorf("page actions failed for %s: %w", req.URL, err)
		}
	}

	var html, title string
	var screenshot []byte
	readTasks := chromedp.Tasks{
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if req.Screenshot {
		readTasks = append(readTasks, chromedp.CaptureScreenshot(&screenshot))
	}
	if err := chromedp.Run(runCtx, readTasks); err != nil {
		healthy = false
		return nil, fmt.Errorf("browser rendering failed for %s: %w", req.URL, err)
	}

	result := &models.FetchResult{
		URL:         req.URL,
		Title:       title,
		RawHTML:     html,
		StatusCode:  200,
		FetcherUsed: TypeDynamic,
	}
	if captchaDetected || (f.captcha == nil && captchaPresent(html)) {
		result.Meta()["captcha_detected"] = "true"
	}

	extracted, err := f.extractor.Extract(html, req.URL, req)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", req.URL, err)
	}
	result.Content = extracted.Content
	result.Links = extracted.Links
	result.Images = extracted.Images
	result.WordCount = extracted.WordCount
	for key, value := range extracted.Meta {
		result.Meta()[key] = value
	}
	if result.Title == "" {
		result.Title = extracted.Title
	}
	if len(screenshot) > 0 {
		result.Screenshot = base64.StdEncoding.EncodeToString(screenshot)
	}
	result.Duration = time.Since(start)

	f.logger.Debug().
		Str("url", req.URL).
		Int("word_count", result.WordCount).
		Dur("duration", result.Duration).
		Msg("Dynamic fetch complete")

	return result, nil
}

// navigateTasks builds the stealth injection, emulation, header, cookie and
// navigation sequence, ending on the requested wait condition.
func (f *DynamicFetcher) navigateTasks(req *models.FetchRequest) chromedp.Tasks {
	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	}

	if req.Mobile {
		tasks = append(tasks,
			emulation.SetUserAgentOverride(f.config.Fetcher.MobileUserAgent),
			chromedp.EmulateViewport(390, 844),
		)
	}
	if len(req.Headers) > 0 {
		headers := make(network.Headers, len(req.Headers))
		for key, value := range req.Headers {
			headers[key] = value
		}
		tasks = append(tasks, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	for key, value := range req.Cookies {
		tasks = append(tasks, setCookieAction(key, value, req.URL))
	}

	tasks = append(tasks, chromedp.Navigate(req.URL))

	if req.WaitForSelector != "" {
		tasks = append(tasks, chromedp.WaitVisible(req.WaitForSelector, chromedp.ByQuery))
	} else if req.WaitNetworkIdle {
		tasks = append(tasks, chromedp.Sleep(networkSettle))
	} else {
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	return tasks
}

// captchaPresent is a cheap marker scan used when no solver is configured.
func captchaPresent(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "g-recaptcha") ||
		strings.Contains(lower, "h-captcha") ||
		strings.Contains(lower, "cf-challenge") ||
		strings.Contains(lower, "cf-turnstile")
}

func setCookieAction(name, value, rawURL string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return err
		}
		return network.SetCookie(name, value).
			WithDomain(u.Hostname()).
			WithPath("/").
			Do(ctx)
	})
}

// pageActionTask maps one scripted action onto a chromedp task.
func pageActionTask(action models.PageAction) (chromedp.Action, error) {
	switch action.Type {
	case models.ActionClick:
		if action.Selector == "" {
			return nil, fmt.Errorf("click action requires a selector")
		}
		return chromedp.Click(action.Selector, chromedp.ByQuery), nil

	case models.ActionType:
		if action.Selector == "" {
			return nil, fmt.Errorf("type action requires a selector")
		}
		return chromedp.SendKeys(action.Selector, action.Value, chromedp.ByQuery), nil

	case models.ActionScroll:
		pixels := action.Pixels
		if pixels == 0 {
			pixels = 800
		}
		expr := fmt.Sprintf("window.scrollBy(0, %d);", pixels)
		return chromedp.Evaluate(expr, nil), nil

	case models.ActionWait:
		millis := action.Millis
		if millis <= 0 {
			millis = 1000
		}
		return chromedp.Sleep(time.Duration(millis) * time.Millisecond), nil

	case models.ActionWaitForSelector:
		if action.Selector == "" {
			return nil, fmt.Errorf("wait_for_selector action requires a selector")
		}
		return chromedp.WaitVisible(action.Selector, chromedp.ByQuery), nil

	default:
		return nil, fmt.Errorf("unknown page action type %q", action.Type)
	}
}
