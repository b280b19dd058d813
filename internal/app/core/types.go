package core

import (
	"slices"
	"strings"
	"time"
	"unicode"
)

// Source tags where an actor record came from.
type Source int

const (
	SourceKB Source = iota + 1
	SourceAnthology
)

// String returns the label used in reports.
func (s Source) String() string {
	switch s {
	case SourceKB:
		return "MITRE ATT&CK"
	case SourceAnthology:
		return "SentinelOne"
	default:
		return "Unknown"
	}
}

// ParseSource maps a report label back to its Source.
func ParseSource(label string) (Source, bool) {
	switch strings.TrimSpace(label) {
	case SourceKB.String():
		return SourceKB, true
	case SourceAnthology.String():
		return SourceAnthology, true
	}
	return 0, false
}

// UnknownRelations is what a source reports when a group has no known aliases.
const UnknownRelations = "Unknown"

// ActorRecord is a raw actor as produced by a single source adapter.
type ActorRecord struct {
	Name        string
	Identifier  string
	Description string
	Relations   string
	URL         string
	Source      Source
}

// Key is the within-source identity of the record.
func (r ActorRecord) Key() string {
	return NormalizeName(r.Name)
}

// NormalizeName lowercases a name and drops whitespace and punctuation.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ActivityEvent is one victim post attributed to an actor on the tracker.
type ActivityEvent struct {
	Date      time.Time
	ActorName string
}

// ActivityWindow summarizes an actor's observed activity.
type ActivityWindow struct {
	First time.Time
	Last  time.Time
	Count int
}

// ActorProfile is the merged view of an actor across sources.
type ActorProfile struct {
	Name          string
	Sources       []Source
	Identifier    string
	Description   string
	Relations     string
	URL           string
	NavigatorURL  string
	LayerURL      string
	Softwares     []string
	Activity      *ActivityWindow
	AnalysisLinks []string
}

// NewProfile starts a profile from a single record.
func NewProfile(r ActorRecord) ActorProfile {
	p := ActorProfile{
		Name:        r.Name,
		Identifier:  r.Identifier,
		Description: r.Description,
		Relations:   r.Relations,
		URL:         r.URL,
	}
	if r.Source != 0 {
		p.Sources = []Source{r.Source}
	}
	return p
}

// HasSource reports whether s contributed to the profile.
func (p ActorProfile) HasSource(s Source) bool {
	return slices.Contains(p.Sources, s)
}

// Merge folds other into p. Fields already set on p win.
func (p ActorProfile) Merge(other ActorProfile) ActorProfile {
	for _, s := range other.Sources {
		if !p.HasSource(s) {
			p.Sources = append(p.Sources, s)
		}
	}
	slices.Sort(p.Sources)

	if p.Identifier == "" {
		p.Identifier = other.Identifier
	}
	if p.Description == "" {
		p.Description = other.Description
	}
	if p.Relations == "" || p.Relations == UnknownRelations {
		if other.Relations != "" {
			p.Relations = other.Relations
		}
	}
	if p.URL == "" {
		p.URL = other.URL
	}
	if p.NavigatorURL == "" {
		p.NavigatorURL = other.NavigatorURL
		p.LayerURL = other.LayerURL
	}
	if p.Activity == nil {
		p.Activity = other.Activity
	}
	p = p.WithSoftwares(other.Softwares)
	for _, l := range other.AnalysisLinks {
		if !slices.Contains(p.AnalysisLinks, l) {
			p.AnalysisLinks = append(p.AnalysisLinks, l)
		}
	}
	return p
}

// WithSoftwares adds softwares, keeping the set deduplicated and sorted.
func (p ActorProfile) WithSoftwares(softwares []string) ActorProfile {
	set := make(map[string]struct{}, len(p.Softwares)+len(softwares))
	out := make([]string, 0, len(p.Softwares)+len(softwares))
	for _, s := range slices.Concat(p.Softwares, softwares) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := set[s]; ok {
			continue
		}
		set[s] = struct{}{}
		out = append(out, s)
	}
	slices.Sort(out)
	if len(out) == 0 {
		out = nil
	}
	p.Softwares = out
	return p
}

// WithActivity attaches an activity window.
func (p ActorProfile) WithActivity(w ActivityWindow) ActorProfile {
	p.Activity = &w
	return p
}
