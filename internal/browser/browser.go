package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrSessionInit is returned when the underlying browser cannot be started
// (missing binary, driver version mismatch). Callers must treat it as fatal
// for the whole run.
var ErrSessionInit = errors.New("browser session init failed")

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        20 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "ko-KR",
		TimezoneID:     "Asia/Seoul",
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: start playwright: %v", ErrSessionInit, err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-gpu",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--user-agent=" + opts.UserAgent,
		},
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("%w: launch chromium: %v", ErrSessionInit, err)
	}

	context, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:  &opts.UserAgent,
		Locale:     &opts.Locale,
		TimezoneId: &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		b.Close()
		pw.Stop()
		return nil, fmt.Errorf("%w: create context: %v", ErrSessionInit, err)
	}

	return &Browser{
		pw:      pw,
		browser: b,
		context: context,
		timeout: opts.Timeout,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))
	return page, nil
}

func (b *Browser) Timeout() time.Duration {
	return b.timeout
}

// SafeGoto navigates and waits for the body element within the page-load
// timeout. A timeout degrades to false: the caller proceeds with whatever
// DOM is present.
func (b *Browser) SafeGoto(page playwright.Page, url string) bool {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.timeout.Milliseconds())),
	})
	if err != nil {
		b.logger.Warn("navigation failed", "url", url, "error", err)
		return false
	}

	_, err = page.WaitForSelector("body", playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(b.timeout.Milliseconds())),
	})
	if err != nil {
		b.logger.Warn("page load timeout", "url", url, "error", err)
		return false
	}
	return true
}

// Close tears the session down on every exit path. Cleanup failures are
// logged and swallowed so a broken teardown never masks the run's result.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			b.logger.Warn("failed to close context", "error", err)
		}
		b.context = nil
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			b.logger.Warn("failed to close browser", "error", err)
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			b.logger.Warn("failed to stop playwright", "error", err)
		}
		b.pw = nil
	}
}
