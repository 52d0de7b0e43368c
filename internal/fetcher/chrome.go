package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Chrome renders pages in a headless Chrome. Each session launches its own
// browser process, which is torn down on Close.
type Chrome struct {
	userAgent string
	timeout   time.Duration
	execPath  string
}

// NewChrome creates a headless Chrome renderer. An empty execPath lets
// chromedp locate the browser.
func NewChrome(userAgent, execPath string, timeout time.Duration) *Chrome {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Chrome{userAgent: userAgent, timeout: timeout, execPath: execPath}
}

// Open launches a fresh browser for one fetch.
func (c *Chrome) Open(ctx context.Context) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(c.userAgent),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface from Open.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &chromeSession{
		ctx:     browserCtx,
		timeout: c.timeout,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	cancel  func()
}

func (s *chromeSession) Fetch(ctx context.Context, r Request) (*Page, error) {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout+r.Settle)
	defer cancel()

	// Honour the caller's cancellation as well as the session's.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(r.URL),
		chromedp.Sleep(r.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", r.URL, err)
	}
	return &Page{URL: r.URL, Body: html}, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
