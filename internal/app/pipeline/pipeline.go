// Package pipeline runs the akamaru queries against the sources and returns
// structured results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"akamaru/internal/app/activity"
	"akamaru/internal/app/console"
	"akamaru/internal/app/core"
	"akamaru/internal/app/correlate"
	"akamaru/internal/app/intel"
	"akamaru/internal/app/search"
	"akamaru/internal/app/sources"
)

const (
	labelActivity = "Ransomlook"
	labelSearch   = "Web search"
)

var (
	labelKB        = core.SourceKB.String()
	labelAnthology = core.SourceAnthology.String()
)

// Pipeline wires the sources to the filter, matcher, correlator and aggregator.
type Pipeline struct {
	Index      *intel.Index
	Correlator *correlate.Correlator

	KB        KnowledgeBase
	Anthology Anthology
	Activity  Activity
	// Searcher is optional; without it no analysis links are suggested.
	Searcher Searcher

	Verbose bool
}

// New builds a pipeline over the live sources sharing fetcher f.
func New(cfg *core.Config, f *sources.Fetcher) (*Pipeline, error) {
	idx, err := intel.NewIndex(cfg.ExtraSectors)
	if err != nil {
		return nil, fmt.Errorf("sector config: %w", err)
	}
	return &Pipeline{
		Index:      idx,
		Correlator: correlate.New(cfg.Substitutions),
		KB:         sources.NewMITRE(f, "", cfg.Verbose),
		Anthology:  sources.NewAnthology(f, "", cfg.Verbose),
		Activity:   sources.NewRansomlook(f, "", cfg.Verbose),
		Searcher:   search.New(cfg),
		Verbose:    cfg.Verbose,
	}, nil
}

// SectorQuery lists the actors of both sources targeting sector, the
// anthology actors active on the tracker and analysis links for them. With
// ttps set every knowledge-base actor is enriched with softwares and
// navigator links. An unknown sector fails before anything is fetched.
func (p *Pipeline) SectorQuery(ctx context.Context, sector string, ttps bool) (*Result, error) {
	filter, err := p.Index.NewFilter(sector)
	if err != nil {
		return nil, err
	}
	res := &Result{Mode: ModeSector, Sector: filter.Sector()}

	console.Logv(p.Verbose, "[PIPELINE] collecting %s actors from %s", res.Sector, labelKB)
	kbRecords, err := p.collect(res, labelKB, filter.Seq(p.KB.Actors(ctx)))
	if err != nil {
		return res, err
	}
	for _, rec := range kbRecords {
		profile := core.NewProfile(rec)
		if ttps {
			if profile, err = p.enrich(ctx, res, profile); err != nil {
				return res, err
			}
		}
		res.KB.Profiles = append(res.KB.Profiles, profile)
	}

	console.Logv(p.Verbose, "[PIPELINE] collecting %s actors from %s", res.Sector, labelAnthology)
	anthRecords, err := p.collect(res, labelAnthology, filter.Seq(p.Anthology.Actors(ctx)))
	if err != nil {
		return res, err
	}
	for _, rec := range anthRecords {
		res.Anthology.Profiles = append(res.Anthology.Profiles, core.NewProfile(rec))
	}
	if len(anthRecords) == 0 {
		return res, nil
	}

	events, err := p.recent(ctx, res)
	if err != nil || events == nil {
		return res, err
	}
	summary := activity.Aggregate(events)
	correlated := p.Correlator.Correlate(summary.Counts, anthRecords)
	res.Activity = &ActivityResult{Summary: summary, Counts: correlated}
	console.Logv(p.Verbose, "[PIPELINE] %d of %d tracked actors match the anthology", len(correlated), len(summary.Counts))

	if err := p.suggest(ctx, res, countNames(correlated)); err != nil {
		return res, err
	}
	for _, entry := range correlated {
		rec, ok := p.Correlator.MatchedRecord(entry.Name, anthRecords)
		if !ok {
			continue
		}
		i := profileIndex(res.Anthology.Profiles, rec.Key())
		if i < 0 {
			continue
		}
		profile := res.Anthology.Profiles[i]
		if w := activity.Aggregate(activity.FilterByActor(events, entry.Name)).Window(); w != nil {
			profile = profile.WithActivity(*w)
		}
		profile.AnalysisLinks = append(profile.AnalysisLinks, res.linksFor(entry.Name)...)
		res.Anthology.Profiles[i] = profile
	}
	return res, nil
}

// ActorQuery looks name up in both sources, its tracker activity and
// analysis links. A source without a match is listed in NotFound.
func (p *Pipeline) ActorQuery(ctx context.Context, name string) (*Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("empty actor name")
	}
	res := &Result{Mode: ModeActor, Query: name}

	rec, err := intel.FindSeq(name, p.KB.Actors(ctx))
	switch {
	case err == nil:
		profile, err := p.enrich(ctx, res, core.NewProfile(rec))
		if err != nil {
			return res, err
		}
		res.KB.Single = &profile
	case !p.absorb(res, labelKB, err):
		return res, err
	}

	anth, err := p.findAnthology(ctx, res, name)
	if err != nil {
		return res, err
	}
	if anth == nil {
		res.consolidate()
		return res, nil
	}
	profile := core.NewProfile(*anth)

	events, err := p.recent(ctx, res)
	if err != nil {
		return res, err
	}
	if events != nil {
		summary := activity.Aggregate(activity.FilterByActor(events, name))
		res.Activity = &ActivityResult{Summary: summary, Counts: summary.Counts}
		if w := summary.Window(); w != nil {
			profile = profile.WithActivity(*w)
		}
		if err := p.suggest(ctx, res, countNames(summary.Counts)); err != nil {
			return res, err
		}
		for _, a := range res.Analysis {
			profile.AnalysisLinks = append(profile.AnalysisLinks, a.Links...)
		}
	}
	res.Anthology.Single = &profile
	res.consolidate()
	return res, nil
}

// ActivityQuery reports every actor on the tracker's recent page.
func (p *Pipeline) ActivityQuery(ctx context.Context) (*Result, error) {
	res := &Result{Mode: ModeActivity}
	events, err := p.recent(ctx, res)
	if err != nil || events == nil {
		return res, err
	}
	summary := activity.Aggregate(events)
	res.Activity = &ActivityResult{Summary: summary, Counts: summary.Counts}
	return res, nil
}

// ListSectors returns the supported sector ids.
func (p *Pipeline) ListSectors() *Result {
	return &Result{Mode: ModeListSectors, Sectors: p.Index.Sectors()}
}

func (p *Pipeline) findAnthology(ctx context.Context, res *Result, name string) (*core.ActorRecord, error) {
	rec, err := intel.FindSeq(name, p.Anthology.Entries(ctx))
	if err == nil {
		described, derr := p.Anthology.Describe(ctx, rec)
		if derr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(derr, core.ErrSourceUnavailable) {
				console.Warn("anthology page unreachable", "actor", rec.Name, "err", derr)
				res.fail(labelAnthology, derr)
			} else {
				console.Logv(p.Verbose, "[PIPELINE] no anthology description for %s: %v", rec.Name, derr)
			}
		}
		return &described, nil
	}
	if !errors.Is(err, core.ErrActorNotFound) {
		if p.absorb(res, labelAnthology, err) {
			return nil, nil
		}
		return nil, err
	}

	// some actors have a page but are missing from the index
	console.Logv(p.Verbose, "[PIPELINE] %s not listed in the anthology, trying its page", name)
	rec, err = p.Anthology.Lookup(ctx, name)
	if err == nil {
		return &rec, nil
	}
	if p.absorb(res, labelAnthology, err) {
		return nil, nil
	}
	return nil, err
}

func (p *Pipeline) enrich(ctx context.Context, res *Result, profile core.ActorProfile) (core.ActorProfile, error) {
	if profile.Identifier == "" {
		return profile, nil
	}
	softwares, err := p.KB.Softwares(ctx, profile.Identifier)
	if err != nil {
		if !p.absorb(res, labelKB, err) {
			return profile, err
		}
	} else {
		profile = profile.WithSoftwares(softwares)
	}

	nav, err := p.KB.Navigator(ctx, profile.Identifier)
	if err != nil {
		if !p.absorb(res, labelKB, err) {
			return profile, err
		}
		return profile, nil
	}
	profile.NavigatorURL = nav.MatrixURL
	profile.LayerURL = nav.LayerURL
	return profile, nil
}

// recent reads the tracker. A nil slice with a nil error means the tracker
// failed and the failure was recorded.
func (p *Pipeline) recent(ctx context.Context, res *Result) ([]core.ActivityEvent, error) {
	events, err := p.Activity.Recent(ctx)
	if err != nil {
		if p.absorb(res, labelActivity, err) {
			return nil, nil
		}
		return nil, err
	}
	if events == nil {
		events = []core.ActivityEvent{}
	}
	return events, nil
}

func (p *Pipeline) suggest(ctx context.Context, res *Result, actors []string) error {
	if p.Searcher == nil {
		return nil
	}
	for _, actor := range actors {
		links, err := p.Searcher.SearchAnalysis(ctx, actor)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			console.Warn("analysis search failed", "actor", actor, "err", err)
			res.fail(labelSearch, fmt.Errorf("%s: %w", actor, err))
			continue
		}
		res.Analysis = append(res.Analysis, Analysis{Actor: actor, Links: links})
	}
	return nil
}
