// Package search looks up public analysis reports about a threat actor.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	EngineAuto   = "auto"
	EngineGoogle = "google"
	EngineBrave  = "brave"
	EngineHTML   = "html"
)

// blacklist drops navigation and video links from result pages.
var blacklist = []string{"google.com", "/search?q=", "youtube.com", "#", "oem.avira.com"}

// prioritySources are the vendors whose write-ups are suggested.
var prioritySources = []string{
	"sentinelone", "trellix", "trendmicro", "mandiant", "sophos", "cisa.gov",
	"kaspersky", "paloalto", "crowdstrike", "malwarebytes", "cyble", "socradar",
	"cybereason",
}

var errNoKeys = errors.New("no available API keys left")

// GoogleResponse is the Custom Search JSON API reply.
type GoogleResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// BraveResponse is the Brave Search API reply.
type BraveResponse struct {
	Web *struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	} `json:"web"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Searcher finds analysis links with whichever engine the config allows.
type Searcher struct {
	cfg     *Config
	client  *http.Client
	limiter *rate.Limiter

	googleAPI string
	braveAPI  string
	htmlURL   string

	mu        sync.Mutex
	exhausted map[string]struct{}
}

// New builds a Searcher from the runtime configuration.
func New(cfg *core.Config) *Searcher {
	c := asConfig(cfg)
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if c.Delay > 0 {
		limit = rate.Every(time.Duration(c.Delay * float64(time.Second)))
	}
	return &Searcher{
		cfg:       c,
		client:    client,
		limiter:   rate.NewLimiter(limit, 1),
		googleAPI: core.DefaultAPIURL,
		braveAPI:  core.BraveAPIURL,
		htmlURL:   core.GoogleHTMLURL,
		exhausted: make(map[string]struct{}),
	}
}

// Dork is the query used to find analysis of an actor.
func Dork(actor string) string {
	return fmt.Sprintf("intext:%s intext:ransomware intext:analysis", actor)
}

// SearchAnalysis returns up to max-links vendor analysis links for actor.
// API failures fall back to the HTML results page; an empty result is not an error.
func (s *Searcher) SearchAnalysis(ctx context.Context, actor string) ([]string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, nil
	}
	dork := Dork(actor)
	engine := s.cfg.engine()
	console.Logv(s.cfg.Verbose, "[SEARCH] %s via %s", dork, engine)

	var (
		links []string
		err   error
	)
	switch engine {
	case EngineGoogle:
		links, err = s.googleSearch(ctx, dork)
	case EngineBrave:
		links, err = s.braveSearch(ctx, braveQuery(dork))
	}
	if engine == EngineHTML || err != nil {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			console.Logv(s.cfg.Verbose, "[SEARCH] %s failed, using results page: %v", engine, err)
		}
		links, err = s.htmlSearch(ctx, dork)
		if err != nil {
			return nil, err
		}
	}

	out := FilterLinks(links, s.cfg.maxLinks())
	console.Logv(s.cfg.Verbose, "[SEARCH] %d of %d links kept for %s", len(out), len(links), actor)
	return out, nil
}

// FilterLinks keeps non-blacklisted vendor links, at most limit of them.
func FilterLinks(links []string, limit int) []string {
	var out []string
	for _, l := range uniqueStrings(links) {
		if limit > 0 && len(out) >= limit {
			break
		}
		if isBlacklisted(l) || !isPrioritySource(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func isBlacklisted(link string) bool {
	for _, term := range blacklist {
		if strings.Contains(link, term) {
			return true
		}
	}
	return false
}

func isPrioritySource(link string) bool {
	l := strings.ToLower(link)
	for _, src := range prioritySources {
		if strings.Contains(l, src) {
			return true
		}
	}
	return false
}

// braveQuery drops the intext: operators Brave does not understand.
func braveQuery(dork string) string {
	return strings.ReplaceAll(dork, "intext:", "")
}

func (s *Searcher) pickKey(keys []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	available := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ex := s.exhausted[k]; !ex {
			available = append(available, k)
		}
	}
	if len(available) == 0 {
		return "", errNoKeys
	}
	return available[rand.IntN(len(available))], nil
}

func (s *Searcher) exhaust(key string) {
	s.mu.Lock()
	s.exhausted[key] = struct{}{}
	s.mu.Unlock()
}

func quotaStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusTooManyRequests
}

func (s *Searcher) googleSearch(ctx context.Context, dork string) ([]string, error) {
	var lastErr error
	for range s.cfg.GoogleAPIKeys {
		key, err := s.pickKey(s.cfg.GoogleAPIKeys)
		if err != nil {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		u := fmt.Sprintf("%s?key=%s&cx=%s&q=%s&num=10", s.googleAPI,
			url.QueryEscape(key), url.QueryEscape(s.cfg.googleCX()), url.QueryEscape(dork))
		header := http.Header{"User-Agent": {s.userAgent()}}

		var gr GoogleResponse
		status, err := httpGetJSON(ctx, s.client, u, header, &gr)
		if err == nil && gr.Error != nil && gr.Error.Message != "" {
			err = fmt.Errorf("API error: %s", gr.Error.Message)
		}
		if err == nil && status != http.StatusOK {
			err = fmt.Errorf("HTTP %d", status)
		}
		if err != nil {
			lastErr = err
			console.Logv(s.cfg.Verbose, "[Google] %v", err)
			if quotaStatus(status) {
				s.exhaust(key)
			}
			continue
		}

		links := make([]string, 0, len(gr.Items))
		for _, item := range gr.Items {
			links = append(links, item.Link)
		}
		return links, nil
	}
	if lastErr == nil {
		lastErr = errNoKeys
	}
	return nil, lastErr
}

func (s *Searcher) braveSearch(ctx context.Context, query string) ([]string, error) {
	var lastErr error
	for range s.cfg.BraveAPIKeys {
		key, err := s.pickKey(s.cfg.BraveAPIKeys)
		if err != nil {
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		u := fmt.Sprintf("%s?q=%s&count=20", s.braveAPI, url.QueryEscape(query))
		header := http.Header{
			"Accept":               {"application/json"},
			"Accept-Encoding":      {"identity"},
			"User-Agent":           {s.userAgent()},
			"X-Subscription-Token": {key},
		}

		var br BraveResponse
		status, err := httpGetJSON(ctx, s.client, u, header, &br)
		if err == nil && br.Error != nil && br.Error.Message != "" {
			err = fmt.Errorf("API error: %s", br.Error.Message)
			if br.Error.Code != 0 {
				status = br.Error.Code
			}
		}
		if err == nil && status != http.StatusOK {
			err = fmt.Errorf("HTTP %d", status)
		}
		if err != nil {
			lastErr = err
			console.Logv(s.cfg.Verbose, "[Brave] %v", err)
			if quotaStatus(status) {
				s.exhaust(key)
			}
			continue
		}

		if br.Web == nil {
			return nil, nil
		}
		links := make([]string, 0, len(br.Web.Results))
		for _, r := range br.Web.Results {
			links = append(links, r.URL)
		}
		return links, nil
	}
	if lastErr == nil {
		lastErr = errNoKeys
	}
	return nil, lastErr
}

func (s *Searcher) htmlSearch(ctx context.Context, dork string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s?q=%s&hl=en", s.htmlURL, url.QueryEscape(dork))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, cleanResultLink(href))
	})
	return links, nil
}

func (s *Searcher) userAgent() string {
	if s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	return core.DefaultUserAgent
}
