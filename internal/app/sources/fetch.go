// Package sources scrapes the public threat-actor sources into core records.
package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// maxBodySize caps a single page read.
const maxBodySize = 16 << 20

// Renderer produces the browser-rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Inspector decides whether a fetched page is a client-side shell.
type Inspector interface {
	NeedsRendering(header http.Header, body []byte) bool
}

// Page is a fetched response body.
type Page struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher is the HTTP layer shared by all adapters. Requests are spaced by a
// fixed delay, each source has its own circuit breaker and pages are cached
// for the lifetime of the Fetcher.
type Fetcher struct {
	client    *http.Client
	userAgent string
	verbose   bool
	limiter   *rate.Limiter

	renderer  Renderer
	inspector Inspector

	breakersMu sync.Mutex
	breakers   map[string]*gobreaker.CircuitBreaker

	cacheMu sync.RWMutex
	cache   map[string]*Page
	group   singleflight.Group
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	Client    *http.Client
	UserAgent string
	// Delay is the minimum spacing between outbound requests; zero disables throttling.
	Delay     time.Duration
	Verbose   bool
	Renderer  Renderer
	Inspector Inspector
}

// NewFetcher builds a Fetcher.
func NewFetcher(opts FetcherOptions) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = core.DefaultUserAgent
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Fetcher{
		client:    client,
		userAgent: ua,
		verbose:   opts.Verbose,
		limiter:   rate.NewLimiter(limit, 1),
		renderer:  opts.Renderer,
		inspector: opts.Inspector,
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		cache:     make(map[string]*Page),
	}
}

// FromConfig builds a Fetcher from the runtime configuration.
func FromConfig(cfg *core.Config, renderer Renderer, inspector Inspector) *Fetcher {
	return NewFetcher(FetcherOptions{
		Client:    cfg.Client,
		UserAgent: cfg.UserAgent,
		Delay:     time.Duration(cfg.Delay * float64(time.Second)),
		Verbose:   cfg.Verbose,
		Renderer:  renderer,
		Inspector: inspector,
	})
}

func (f *Fetcher) breaker(source string) *gobreaker.CircuitBreaker {
	f.breakersMu.Lock()
	defer f.breakersMu.Unlock()
	if cb, ok := f.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// only an unreachable source counts against the breaker
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, core.ErrSourceUnavailable) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			console.Logv(f.verbose, "[%s] circuit %s -> %s", name, from, to)
		},
	})
	f.breakers[source] = cb
	return cb
}

// Get fetches url for source. Non-2xx responses fail with ErrSourceUnavailable.
// Successful pages are cached.
func (f *Fetcher) Get(ctx context.Context, source, url string) (*Page, error) {
	f.cacheMu.RLock()
	if p, ok := f.cache[url]; ok {
		f.cacheMu.RUnlock()
		return p, nil
	}
	f.cacheMu.RUnlock()

	v, err, _ := f.group.Do(url, func() (any, error) {
		f.cacheMu.RLock()
		if p, ok := f.cache[url]; ok {
			f.cacheMu.RUnlock()
			return p, nil
		}
		f.cacheMu.RUnlock()

		page, err := f.do(ctx, source, url)
		if err != nil {
			return nil, err
		}
		if page.Status < 200 || page.Status > 299 {
			return nil, core.Unavailable(source, url, page.Status, nil)
		}

		f.cacheMu.Lock()
		f.cache[url] = page
		f.cacheMu.Unlock()
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// Status returns the response code of url without treating non-2xx as an
// error. A 2xx page is cached so a following Get does not fetch it again.
func (f *Fetcher) Status(ctx context.Context, source, url string) (int, error) {
	f.cacheMu.RLock()
	if p, ok := f.cache[url]; ok {
		f.cacheMu.RUnlock()
		return p.Status, nil
	}
	f.cacheMu.RUnlock()

	page, err := f.do(ctx, source, url)
	if err != nil {
		return 0, err
	}
	if page.Status >= 200 && page.Status <= 299 {
		f.cacheMu.Lock()
		f.cache[url] = page
		f.cacheMu.Unlock()
	}
	return page.Status, nil
}

func (f *Fetcher) do(ctx context.Context, source, url string) (*Page, error) {
	v, err := f.breaker(source).Execute(func() (interface{}, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		console.Logv(f.verbose, "[%s] GET %s", source, url)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		setBrowserHeaders(req, f.userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, core.Unavailable(source, url, 0, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, core.Unavailable(source, url, resp.StatusCode, err)
		}
		page := &Page{URL: url, Status: resp.StatusCode, Header: resp.Header, Body: body}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return page, core.Unavailable(source, url, resp.StatusCode, nil)
		}
		return page, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.Unavailable(source, url, 0, err)
	}
	if p, ok := v.(*Page); ok && p != nil {
		// server errors still carry a page so Status can report the code
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, core.Unavailable(source, url, 0, errors.New("empty response"))
}

// Document fetches url and parses it. When ready is set and missing from the
// page, the page is rendered in a browser if it looks client-side built.
func (f *Fetcher) Document(ctx context.Context, source, url, ready string) (*goquery.Document, error) {
	page, err := f.Get(ctx, source, url)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, core.ParseFailure(source, url, "parse html: %v", err)
	}
	if ready == "" || doc.Find(ready).Length() > 0 || f.renderer == nil {
		return doc, nil
	}
	if f.inspector != nil && !f.inspector.NeedsRendering(page.Header, page.Body) {
		return doc, nil
	}

	console.Logv(f.verbose, "[%s] %q missing from %s, rendering", source, ready, url)
	html, err := f.renderer.Render(ctx, url)
	if err != nil {
		console.Logv(f.verbose, "[%s] render failed: %v", source, err)
		return doc, nil
	}
	rendered, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return doc, nil
	}
	return rendered, nil
}

func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}
