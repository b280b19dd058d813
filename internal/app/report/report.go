// Package report flattens query results into the semicolon-delimited export.
package report

import (
	"strings"

	"akamaru/internal/app/core"
)

// Header is the fixed column layout of an export.
var Header = []string{"Group", "Source", "Url", "Groups Related", "Softwares"}

// None is written for any missing field.
const None = "None"

// Row is one exported actor result.
type Row struct {
	Group         string
	Source        string
	URL           string
	RelatedGroups string
	Softwares     string
}

// Fields returns the row in Header order with empty fields rendered as None.
func (r Row) Fields() []string {
	return []string{orNone(r.Group), orNone(r.Source), orNone(r.URL), orNone(r.RelatedGroups), orNone(r.Softwares)}
}

// KBResult is the knowledge-base side of a query: one profile for an actor
// query, or a list for a sector query.
type KBResult struct {
	Single   *core.ActorProfile
	Profiles []core.ActorProfile
}

// AnthologyResult is the anthology side of a query.
type AnthologyResult struct {
	Single   *core.ActorProfile
	Profiles []core.ActorProfile
}

// Build assembles rows from whatever results exist. Softwares of a sector
// listing are only exported when includeTTPs is set.
func Build(kb KBResult, anthology AnthologyResult, includeTTPs bool) []Row {
	var rows []Row
	if kb.Single != nil {
		rows = append(rows, kbRow(*kb.Single, kb.Single.URL, true))
	}
	for _, p := range kb.Profiles {
		// listing rows point at the navigator matrix
		url := p.NavigatorURL
		if url == "" {
			url = p.URL
		}
		rows = append(rows, kbRow(p, url, includeTTPs))
	}
	if anthology.Single != nil {
		rows = append(rows, anthologyRow(*anthology.Single))
	}
	for _, p := range anthology.Profiles {
		rows = append(rows, anthologyRow(p))
	}
	return rows
}

func kbRow(p core.ActorProfile, url string, withSoftwares bool) Row {
	r := Row{
		Group:         p.Name,
		Source:        core.SourceKB.String(),
		URL:           url,
		RelatedGroups: p.Relations,
	}
	if withSoftwares {
		r.Softwares = strings.Join(p.Softwares, ", ")
	}
	return r
}

func anthologyRow(p core.ActorProfile) Row {
	return Row{Group: p.Name, Source: core.SourceAnthology.String(), URL: p.URL}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return None
	}
	return s
}
