package sources

import (
	"context"
	"iter"
	"net/url"
	"slices"
	"strings"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"

	"github.com/PuerkitoBio/goquery"
)

const (
	MITREBaseURL     = "https://attack.mitre.org"
	NavigatorBaseURL = "https://mitre-attack.github.io/attack-navigator//#layerURL="

	sourceMITRE = "mitre"
)

// Navigator links an actor to its technique matrix.
type Navigator struct {
	MatrixURL string
	LayerURL  string
}

// MITRE reads the ATT&CK groups knowledge base.
type MITRE struct {
	fetcher *Fetcher
	base    string
	verbose bool
}

// NewMITRE returns the knowledge-base adapter. An empty base uses the public site.
func NewMITRE(f *Fetcher, base string, verbose bool) *MITRE {
	if base == "" {
		base = MITREBaseURL
	}
	return &MITRE{fetcher: f, base: strings.TrimRight(base, "/"), verbose: verbose}
}

func (m *MITRE) groupURL(id string) string {
	return m.base + "/groups/" + url.PathEscape(id)
}

// Actors yields every group of the groups table in page order.
func (m *MITRE) Actors(ctx context.Context) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		u := m.base + "/groups/"
		doc, err := m.fetcher.Document(ctx, sourceMITRE, u, "table tbody tr")
		if err != nil {
			yield(core.ActorRecord{}, err)
			return
		}

		rows := doc.Find("table tbody tr")
		if rows.Length() == 0 {
			yield(core.ActorRecord{}, core.ParseFailure(sourceMITRE, u, "groups table has no rows"))
			return
		}
		console.Logv(m.verbose, "[MITRE] %d groups listed", rows.Length())

		for i := range rows.Length() {
			cells := rows.Eq(i).Find("td")
			if cells.Length() < 4 {
				continue
			}
			id := cellText(cells.Eq(0))
			name := cellText(cells.Eq(1))
			if id == "" || name == "" {
				continue
			}
			relations := cellText(cells.Eq(2))
			if relations == "" {
				relations = core.UnknownRelations
			}
			rec := core.ActorRecord{
				Name:        name,
				Identifier:  id,
				Description: cellText(cells.Eq(3)),
				Relations:   relations,
				URL:         m.groupURL(id),
				Source:      core.SourceKB,
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Softwares lists the deduplicated software names used by a group.
func (m *MITRE) Softwares(ctx context.Context, actorID string) ([]string, error) {
	doc, err := m.fetcher.Document(ctx, sourceMITRE, m.groupURL(actorID), "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, "/software/S") {
			return
		}
		text := strings.TrimSpace(s.Text())
		// software tables link both the id and the name; keep the name
		if text == "" || text == softwareID(href) {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		out = append(out, text)
	})
	slices.Sort(out)
	console.Logv(m.verbose, "[MITRE] %s uses %d softwares", actorID, len(out))
	return out, nil
}

// Navigator returns the group's ATT&CK Navigator layer links.
func (m *MITRE) Navigator(ctx context.Context, actorID string) (Navigator, error) {
	u := m.groupURL(actorID)
	doc, err := m.fetcher.Document(ctx, sourceMITRE, u, "")
	if err != nil {
		return Navigator{}, err
	}

	var layer string
	doc.Find("a.dropdown-item[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(href, "layer.json") {
			layer = href
			return false
		}
		return true
	})
	if layer == "" {
		return Navigator{}, core.ParseFailure(sourceMITRE, u, "no navigator layer link")
	}

	layerURL := resolve(m.base+"/", layer)
	return Navigator{MatrixURL: NavigatorBaseURL + layerURL, LayerURL: layerURL}, nil
}

// softwareID extracts S0002 from /software/S0002.
func softwareID(href string) string {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	for i, p := range parts {
		if p == "software" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
