package intel

import (
	"iter"
	"strings"

	"akamaru/internal/app/core"
)

// Filter applies a sector's keywords to actor descriptions.
type Filter struct {
	sector    string
	keywords  []string
	blacklist []string
}

// NewFilter resolves the sector up front so an unknown id fails before any record is read.
func (i *Index) NewFilter(sector string) (*Filter, error) {
	kw, err := i.Keywords(sector)
	if err != nil {
		return nil, err
	}
	return &Filter{sector: normalizeSector(sector), keywords: kw, blacklist: i.Blacklist(sector)}, nil
}

// Sector is the normalized sector id.
func (f *Filter) Sector() string { return f.sector }

// Clean strips the sector's blacklisted substrings from a description.
func (f *Filter) Clean(description string) string {
	for _, b := range f.blacklist {
		description = strings.ReplaceAll(description, b, "")
	}
	return description
}

// Match reports whether the cleaned description contains any keyword. Case-sensitive.
func (f *Filter) Match(description string) bool {
	cleaned := f.Clean(description)
	for _, k := range f.keywords {
		if strings.Contains(cleaned, k) {
			return true
		}
	}
	return false
}

// Apply keeps matching records in input order, dropping later duplicates by normalized name.
func (f *Filter) Apply(records []core.ActorRecord) []core.ActorRecord {
	seen := make(map[string]struct{})
	var out []core.ActorRecord
	for _, r := range records {
		if !f.Match(r.Description) {
			continue
		}
		if _, dup := seen[r.Key()]; dup {
			continue
		}
		seen[r.Key()] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Seq is the lazy form of Apply over an adapter stream. Errors pass through untouched.
func (f *Filter) Seq(records iter.Seq2[core.ActorRecord, error]) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		seen := make(map[string]struct{})
		for r, err := range records {
			if err != nil {
				if !yield(core.ActorRecord{}, err) {
					return
				}
				continue
			}
			if !f.Match(r.Description) {
				continue
			}
			if _, dup := seen[r.Key()]; dup {
				continue
			}
			seen[r.Key()] = struct{}{}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// FilterBySector is a one-shot helper over a slice.
func FilterBySector(idx *Index, records []core.ActorRecord, sector string) ([]core.ActorRecord, error) {
	f, err := idx.NewFilter(sector)
	if err != nil {
		return nil, err
	}
	return f.Apply(records), nil
}
