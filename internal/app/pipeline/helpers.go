package pipeline

import (
	"errors"
	"iter"

	"akamaru/internal/app/activity"
	"akamaru/internal/app/console"
	"akamaru/internal/app/core"
)

// absorb records a per-source failure or a missing actor on res and reports
// whether the query can go on without that source.
func (p *Pipeline) absorb(res *Result, source string, err error) bool {
	switch {
	case errors.Is(err, core.ErrActorNotFound):
		console.Logv(p.Verbose, "[PIPELINE] %q not found on %s", res.Query, source)
		res.NotFound = append(res.NotFound, source)
		return true
	case core.IsSourceFailure(err):
		console.Warn("source skipped", "source", source, "err", err)
		res.fail(source, err)
		return true
	}
	return false
}

// collect drains records, keeping what was read before a source failure.
func (p *Pipeline) collect(res *Result, source string, records iter.Seq2[core.ActorRecord, error]) ([]core.ActorRecord, error) {
	var out []core.ActorRecord
	for r, err := range records {
		if err != nil {
			if p.absorb(res, source, err) {
				return out, nil
			}
			return out, err
		}
		out = append(out, r)
	}
	console.Logv(p.Verbose, "[PIPELINE] %d actors kept from %s", len(out), source)
	return out, nil
}

func countNames(counts []activity.Count) []string {
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.Name)
	}
	return names
}

func profileIndex(profiles []core.ActorProfile, key string) int {
	for i, p := range profiles {
		if core.NormalizeName(p.Name) == key {
			return i
		}
	}
	return -1
}

func (r *Result) linksFor(actor string) []string {
	for _, a := range r.Analysis {
		if a.Actor == actor {
			return a.Links
		}
	}
	return nil
}
