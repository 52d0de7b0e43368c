// Package fetcher opens isolated page-fetch sessions against the content source.
//
// A Renderer hands out Sessions; every Session must be closed by the caller,
// whether or not its fetch succeeded.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent mimics a desktop browser; the source rejects obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const maxBodySize = 5 * 1024 * 1024

// Request describes one page to fetch.
type Request struct {
	URL string
	// Settle is how long a rendering session waits for scripts after load.
	Settle time.Duration
}

// Page is the fetched document.
type Page struct {
	URL  string
	Body string
}

// Session is a single isolated fetch context.
type Session interface {
	Fetch(ctx context.Context, req Request) (*Page, error)
	Close() error
}

// Renderer opens fresh sessions.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTP fetches raw documents with a plain HTTP client. No scripts are run.
type HTTP struct {
	client    HTTPClient
	userAgent string
	timeout   time.Duration
}

// NewHTTP creates an HTTP renderer with the given client.
func NewHTTP(client HTTPClient, userAgent string, timeout time.Duration) *HTTP {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{client: client, userAgent: userAgent, timeout: timeout}
}

// Open returns a new session sharing the underlying client.
func (h *HTTP) Open(_ context.Context) (Session, error) {
	return &httpSession{h: h}, nil
}

type httpSession struct {
	h *HTTP
}

func (s *httpSession) Fetch(ctx context.Context, r Request) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, s.h.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Page{URL: r.URL, Body: string(body)}, nil
}

func (s *httpSession) Close() error { return nil }
