package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"

	"codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
)

const (
	SentinelOneBaseURL = "https://www.sentinelone.com"

	sourceSentinelOne = "sentinelone"
)

// Anthology reads the SentinelOne ransomware anthology.
type Anthology struct {
	fetcher *Fetcher
	base    string
	verbose bool
}

// NewAnthology returns the anthology adapter. An empty base uses the public site.
func NewAnthology(f *Fetcher, base string, verbose bool) *Anthology {
	if base == "" {
		base = SentinelOneBaseURL
	}
	return &Anthology{fetcher: f, base: strings.TrimRight(base, "/"), verbose: verbose}
}

// Entries yields the actors listed on the anthology index without descriptions.
func (a *Anthology) Entries(ctx context.Context) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		u := a.base + "/anthology"
		doc, err := a.fetcher.Document(ctx, sourceSentinelOne, u, "div.anthology-entry")
		if err != nil {
			yield(core.ActorRecord{}, err)
			return
		}

		entries := doc.Find("div.anthology-entry")
		if entries.Length() == 0 {
			yield(core.ActorRecord{}, core.ParseFailure(sourceSentinelOne, u, "no anthology entries"))
			return
		}
		console.Logv(a.verbose, "[S1] %d anthology entries", entries.Length())

		for i := range entries.Length() {
			e := entries.Eq(i)
			name := cellText(e.Find("h3").First())
			href, ok := e.Find("a[href]").First().Attr("href")
			if name == "" || !ok {
				continue
			}
			rec := core.ActorRecord{
				Name:      name,
				URL:       resolve(u, href),
				Relations: core.UnknownRelations,
				Source:    core.SourceAnthology,
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Actors yields every anthology actor with its description. One page is
// fetched per actor. A page without a target section leaves the description
// empty; unreachable pages end the stream with an ErrSourceUnavailable error
// once the remaining records are yielded, or right away when the source's
// circuit is open.
func (a *Anthology) Actors(ctx context.Context) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		var (
			total, failed int
			firstErr      error
		)
		for rec, err := range a.Entries(ctx) {
			if err != nil {
				yield(core.ActorRecord{}, err)
				return
			}
			total++
			rec, err = a.Describe(ctx, rec)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				yield(core.ActorRecord{}, ctx.Err())
				return
			case errors.Is(err, gobreaker.ErrOpenState):
				yield(core.ActorRecord{}, a.pagesUnavailable(failed+1, total, err))
				return
			case errors.Is(err, core.ErrSourceUnavailable):
				failed++
				if firstErr == nil {
					firstErr = err
				}
				console.Logv(a.verbose, "[S1] description page of %s unavailable: %v", rec.Name, err)
			default:
				console.Logv(a.verbose, "[S1] no description for %s: %v", rec.Name, err)
			}
			if !yield(rec, nil) {
				return
			}
		}
		if failed > 0 {
			yield(core.ActorRecord{}, a.pagesUnavailable(failed, total, firstErr))
		}
	}
}

func (a *Anthology) pagesUnavailable(failed, total int, err error) error {
	return core.Unavailable(sourceSentinelOne, a.base+"/anthology", 0,
		fmt.Errorf("%d of %d actor pages unreachable: %w", failed, total, err))
}

// Describe fills the record's description from its anthology page.
func (a *Anthology) Describe(ctx context.Context, rec core.ActorRecord) (core.ActorRecord, error) {
	page, err := a.fetcher.Get(ctx, sourceSentinelOne, rec.URL)
	if err != nil {
		return rec, err
	}
	desc, err := a.description(page)
	if err != nil {
		return rec, err
	}
	rec.Description = desc
	return rec, nil
}

// Lookup finds an actor missing from the index through its direct page,
// /anthology/<slug>. A 404 means the anthology has no such actor.
func (a *Anthology) Lookup(ctx context.Context, name string) (core.ActorRecord, error) {
	u := a.base + "/anthology/" + url.PathEscape(slug(name))
	status, err := a.fetcher.Status(ctx, sourceSentinelOne, u)
	if err != nil {
		return core.ActorRecord{}, err
	}
	switch {
	case status == http.StatusNotFound:
		return core.ActorRecord{}, fmt.Errorf("%w: %q", core.ErrActorNotFound, name)
	case status != http.StatusOK:
		return core.ActorRecord{}, core.Unavailable(sourceSentinelOne, u, status, nil)
	}
	console.Logv(a.verbose, "[S1] found unlisted page for %s", name)

	rec := core.ActorRecord{
		Name:      name,
		URL:       u,
		Relations: core.UnknownRelations,
		Source:    core.SourceAnthology,
	}
	described, err := a.Describe(ctx, rec)
	if err != nil {
		console.Logv(a.verbose, "[S1] no description for %s: %v", name, err)
		return rec, nil
	}
	return described, nil
}

func (a *Anthology) description(page *Page) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", core.ParseFailure(sourceSentinelOne, page.URL, "parse html: %v", err)
	}
	if wrapper := doc.Find("div.content-wrapper").First(); wrapper.Length() > 0 {
		if desc, ok := targetSection(wrapper.Text()); ok {
			return desc, nil
		}
	}

	// layout changed: fall back to the readable article text
	pageURL, _ := url.Parse(page.URL)
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return "", core.ParseFailure(sourceSentinelOne, page.URL, "extract article: %v", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", core.ParseFailure(sourceSentinelOne, page.URL, "render article text: %v", err)
	}
	if desc, ok := targetSection(builder.String()); ok {
		return desc, nil
	}
	return "", core.ParseFailure(sourceSentinelOne, page.URL, "no target section")
}

// targetSection returns the answer to the "What Do They Target?" question:
// the non-empty lines after the question up to the next line with a "?".
func targetSection(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if !strings.Contains(line, "Target?") {
			continue
		}
		var parts []string
		for _, next := range lines[i+1:] {
			if strings.Contains(next, "?") {
				break
			}
			if next = strings.TrimSpace(next); next != "" {
				parts = append(parts, next)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, " "), true
	}
	return "", false
}

func slug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}
