// Package render loads pages in headless Chrome for sources whose markup is
// built client-side.
package render

import (
	"context"
	"fmt"
	"time"

	"akamaru/internal/app/console"

	"github.com/chromedp/chromedp"
)

// Chrome renders pages with a headless browser started on first use.
type Chrome struct {
	UserAgent string
	Proxy     string
	Settle    time.Duration
	Verbose   bool

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// NewChrome returns a renderer. Close must be called to stop the browser.
func NewChrome(userAgent, proxy string, verbose bool) *Chrome {
	return &Chrome{UserAgent: userAgent, Proxy: proxy, Settle: 2 * time.Second, Verbose: verbose}
}

func (c *Chrome) allocator(ctx context.Context) context.Context {
	if c.allocCtx != nil {
		return c.allocCtx
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(c.UserAgent),
		chromedp.Flag("headless", true),
	)
	if c.Proxy != "" {
		opts = append(opts, chromedp.ProxyServer(c.Proxy))
	}
	// the browser outlives a single render call
	c.allocCtx, c.cancelAlloc = chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	return c.allocCtx
}

// Render navigates to url and returns the rendered document HTML.
func (c *Chrome) Render(ctx context.Context, url string) (string, error) {
	console.Logv(c.Verbose, "[RENDER] Loading %s in headless Chrome", url)

	tabCtx, cancelTab := chromedp.NewContext(c.allocator(ctx))
	defer cancelTab()

	// stop the tab when the caller gives up
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.Settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	if c.cancelAlloc != nil {
		c.cancelAlloc()
		c.allocCtx, c.cancelAlloc = nil, nil
	}
}
