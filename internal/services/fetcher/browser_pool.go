// -----------------------------------------------------------------------
// Browser Pool - bounded pool of chromedp browser contexts launched on
// demand, with blocking acquire, health-checked release and binary
// auto-detection
// -----------------------------------------------------------------------

package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/noeticlabs/websearch/internal/common"
)

// wellKnownBrowserPaths are probed when no explicit binary is configured,
// before falling back to PATH lookup.
var wellKnownBrowserPaths = map[string][]string{
	"linux": {
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
	},
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

var browserBinaryNames = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}

// DetectBrowserBinary resolves the browser executable: explicit config
// first, then well-known install locations, then PATH. Empty string means
// no browser is available and dynamic fetching is disabled.
func DetectBrowserBinary(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
		return ""
	}
	for _, path := range wellKnownBrowserPaths[runtime.GOOS] {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, name := range browserBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// BrowserInstance is one pooled browser with its cancel chain.
type BrowserInstance struct {
	Ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

func (b *BrowserInstance) close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// BrowserPool hands out browser contexts to at most capacity concurrent
// users. Browsers are launched lazily on acquire; release closes unhealthy
// instances so the next acquire replaces them.
type BrowserPool struct {
	config    *common.Config
	userAgent string
	logger    arbor.ILogger

	idle chan *BrowserInstance
	done chan struct{}

	mu       sync.Mutex
	execPath string
	detected bool
	live     int // launched and not yet closed, idle or checked out
	capacity int
	closed   bool
}

// NewBrowserPool creates the pool without starting any browsers, so serving
// requests that never render JS costs nothing.
func NewBrowserPool(config *common.Config, logger arbor.ILogger) *BrowserPool {
	capacity := config.Browser.PoolSize
	if capacity <= 0 {
		capacity = 1
	}
	return &BrowserPool{
		config:    config,
		userAgent: config.Fetcher.UserAgent,
		logger:    logger,
		idle:      make(chan *BrowserInstance, capacity),
		done:      make(chan struct{}),
		capacity:  capacity,
	}
}

// binary resolves the browser executable once per pool lifetime.
func (p *BrowserPool) binary() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.detected {
		p.detected = true
		p.execPath = DetectBrowserBinary(p.config.Browser.ExecPath)
		if p.execPath != "" {
			p.logger.Info().
				Str("exec_path", p.execPath).
				Int("capacity", p.capacity).
				Bool("headless", p.config.Browser.Headless).
				Msg("Browser pool ready")
		}
	}
	if p.execPath == "" {
		return "", fmt.Errorf("no browser binary found; set browser.exec_path or install Chrome/Chromium")
	}
	return p.execPath, nil
}

// Acquire returns an idle instance, launches a new one while below
// capacity, or blocks until a release. It respects the caller's context and
// the configured acquire wait, whichever ends first.
func (p *BrowserPool) Acquire(ctx context.Context) (*BrowserInstance, error) {
	wait := p.config.Browser.AcquireWait
	if wait <= 0 {
		wait = 30 * time.Second
	}
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("browser pool is closed")
		}

		select {
		case inst := <-p.idle:
			p.mu.Unlock()
			if inst.Ctx.Err() != nil {
				p.discard(inst)
				continue
			}
			return inst, nil
		default:
		}

		if p.live < p.capacity {
			p.live++
			p.mu.Unlock()

			inst, err := p.launch()
			if err != nil {
				p.mu.Lock()
				p.live--
				p.mu.Unlock()
				return nil, err
			}
			return inst, nil
		}
		p.mu.Unlock()

		select {
		case inst := <-p.idle:
			if inst.Ctx.Err() != nil {
				p.discard(inst)
				continue
			}
			return inst, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, fmt.Errorf("browser pool is closed")
		case <-deadline.C:
			return nil, fmt.Errorf("timed out waiting for a browser instance after %s", wait)
		}
	}
}

// Release returns an instance to the pool. Unhealthy or surplus instances
// are closed; the next acquire launches a replacement.
func (p *BrowserPool) Release(inst *BrowserInstance, healthy bool) {
	if inst == nil {
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed || !healthy || inst.Ctx.Err() != nil {
		if !closed {
			p.logger.Debug().Msg("Closing unhealthy browser instance")
		}
		p.discard(inst)
		return
	}

	select {
	case p.idle <- inst:
	default:
		p.discard(inst)
	}
}

func (p *BrowserPool) discard(inst *BrowserInstance) {
	inst.close()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()
}

func (p *BrowserPool) launch() (*BrowserInstance, error) {
	execPath, err := p.binary()
	if err != nil {
		return nil, err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", p.config.Browser.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", p.config.Browser.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", false),
		chromedp.UserAgent(p.userAgent),
	)
	if p.config.Browser.ProxyServer != "" {
		opts = append(opts, chromedp.ProxyServer(p.config.Browser.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	inst := &BrowserInstance{
		Ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		inst.close()
		return nil, fmt.Errorf("browser instance failed startup test: %w", err)
	}

	p.logger.Debug().Str("exec_path", execPath).Msg("Launched browser instance")
	return inst, nil
}

// Stats returns pool gauges for the stats endpoint.
func (p *BrowserPool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]interface{}{
		"capacity":  p.capacity,
		"live":      p.live,
		"idle":      len(p.idle),
		"exec_path": p.execPath,
	}
}

// Shutdown closes every idle instance and marks the pool closed. Instances
// currently checked out are closed by Release once returned. Idempotent.
func (p *BrowserPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	for {
		select {
		case inst := <-p.idle:
			inst.close()
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
		default:
			p.logger.Info().Msg("Browser pool shut down")
			return
		}
	}
}
