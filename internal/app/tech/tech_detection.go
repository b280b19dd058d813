package tech

import (
	"net/http"
	"slices"
	"strings"
	"sync"

	wappalyzergo "github.com/projectdiscovery/wappalyzergo"
)

// TechDetectionResult is one technology found on a fetched page.
type TechDetectionResult struct {
	Technology string
	Version    string
	Category   string
}

// clientSideFrameworks build their markup in the browser; a plain GET of
// such a page returns an empty shell.
var clientSideFrameworks = []string{
	"React", "Next.js", "Vue.js", "Nuxt.js", "Angular", "AngularJS", "Svelte", "Gatsby", "Ember.js",
}

// Detector wraps a lazily loaded wappalyzer instance.
type Detector struct {
	once sync.Once
	wap  *wappalyzergo.Wappalyze
	err  error
}

// NewDetector returns a Detector. Fingerprints are loaded on first use.
func NewDetector() *Detector {
	return &Detector{}
}

func (d *Detector) load() error {
	d.once.Do(func() {
		d.wap, d.err = wappalyzergo.New()
	})
	return d.err
}

// Fingerprint runs wappalyzer over a response.
func (d *Detector) Fingerprint(header http.Header, body []byte) ([]TechDetectionResult, error) {
	if err := d.load(); err != nil {
		return nil, err
	}
	info := d.wap.FingerprintWithInfo(header, body)

	results := make([]TechDetectionResult, 0, len(info))
	for name, app := range info {
		tech, version, _ := strings.Cut(name, ":")
		category := "Other"
		if len(app.Categories) > 0 {
			category = getCategoryName(app.Categories[0])
		}
		results = append(results, TechDetectionResult{Technology: tech, Version: version, Category: category})
	}
	slices.SortFunc(results, func(a, b TechDetectionResult) int {
		return strings.Compare(a.Technology, b.Technology)
	})
	return results, nil
}

// NeedsRendering reports whether the page is built by a client-side framework.
func (d *Detector) NeedsRendering(header http.Header, body []byte) bool {
	results, err := d.Fingerprint(header, body)
	if err != nil {
		return false
	}
	return RequiresBrowser(results)
}

// RequiresBrowser reports whether any detected technology renders in the browser.
func RequiresBrowser(results []TechDetectionResult) bool {
	for _, r := range results {
		if slices.Contains(clientSideFrameworks, r.Technology) {
			return true
		}
	}
	return false
}

// getCategoryName returns a human-readable category name
func getCategoryName(category string) string {
	categoryMap := map[string]string{
		"cms":                   "CMS",
		"web frameworks":        "Framework",
		"javascript frameworks": "JS Framework",
		"programming languages": "Language",
		"web servers":           "Web Server",
		"analytics":             "Analytics",
		"javascript libraries":  "JS Library",
		"cdn":                   "CDN",
		"static site generator": "Static Site",
	}

	if mapped, ok := categoryMap[strings.ToLower(category)]; ok {
		return mapped
	}

	return "Other"
}
