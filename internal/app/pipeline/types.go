package pipeline

import (
	"context"
	"iter"

	"akamaru/internal/app/activity"
	"akamaru/internal/app/core"
	"akamaru/internal/app/report"
	"akamaru/internal/app/sources"
)

// Navigator aliases the knowledge-base navigator links.
type Navigator = sources.Navigator

// KnowledgeBase is the techniques knowledge base (MITRE ATT&CK).
type KnowledgeBase interface {
	Actors(ctx context.Context) iter.Seq2[core.ActorRecord, error]
	Softwares(ctx context.Context, actorID string) ([]string, error)
	Navigator(ctx context.Context, actorID string) (Navigator, error)
}

// Anthology is the ransomware anthology (SentinelOne).
type Anthology interface {
	Actors(ctx context.Context) iter.Seq2[core.ActorRecord, error]
	Entries(ctx context.Context) iter.Seq2[core.ActorRecord, error]
	Describe(ctx context.Context, rec core.ActorRecord) (core.ActorRecord, error)
	Lookup(ctx context.Context, name string) (core.ActorRecord, error)
}

// Activity is the ransomware activity tracker (ransomlook).
type Activity interface {
	Recent(ctx context.Context) ([]core.ActivityEvent, error)
}

// Searcher finds published analysis of an actor.
type Searcher interface {
	SearchAnalysis(ctx context.Context, actor string) ([]string, error)
}

// Mode is the query a run performs.
type Mode int

const (
	ModeNone Mode = iota
	ModeSector
	ModeActor
	ModeActivity
	ModeListSectors
)

func (m Mode) String() string {
	switch m {
	case ModeSector:
		return "sector"
	case ModeActor:
		return "actor"
	case ModeActivity:
		return "activity"
	case ModeListSectors:
		return "list-sectors"
	default:
		return "none"
	}
}

// Failure is a source that could not be read during a query.
type Failure struct {
	Source string
	Err    error
}

// ActivityResult is the tracker side of a query. Counts holds what is shown:
// the correlated entries for a sector query, every entry otherwise.
type ActivityResult struct {
	Summary activity.Summary
	Counts  []activity.Count
}

// Analysis holds the suggested write-ups for one actor.
type Analysis struct {
	Actor string
	Links []string
}

// Result is the structured outcome of a query. Rendering is left to the caller.
type Result struct {
	Mode   Mode
	Sector string
	Query  string

	KB        report.KBResult
	Anthology report.AnthologyResult
	Activity  *ActivityResult
	Analysis  []Analysis
	Sectors   []string

	// Profile merges both sources' view of the actor of an actor query.
	Profile *core.ActorProfile

	// NotFound lists the sources that had no actor matching Query.
	NotFound []string
	Failures []Failure
}

// Rows flattens the result into export rows.
func (r *Result) Rows(includeTTPs bool) []report.Row {
	return report.Build(r.KB, r.Anthology, includeTTPs)
}

// Empty reports whether no source produced anything.
func (r *Result) Empty() bool {
	return r.KB.Single == nil && len(r.KB.Profiles) == 0 &&
		r.Anthology.Single == nil && len(r.Anthology.Profiles) == 0 &&
		(r.Activity == nil || len(r.Activity.Counts) == 0) &&
		len(r.Sectors) == 0
}

func (r *Result) consolidate() {
	var merged *core.ActorProfile
	for _, p := range []*core.ActorProfile{r.KB.Single, r.Anthology.Single} {
		if p == nil {
			continue
		}
		if merged == nil {
			c := *p
			merged = &c
			continue
		}
		m := merged.Merge(*p)
		merged = &m
	}
	r.Profile = merged
}

func (r *Result) fail(source string, err error) {
	r.Failures = append(r.Failures, Failure{Source: source, Err: err})
}
