// Package correlate intersects ransomware-tracker actor names with actor
// records from another source.
package correlate

import (
	"maps"
	"slices"
	"strings"

	"akamaru/internal/app/activity"
	"akamaru/internal/app/core"
)

// DefaultSubstitutions turns tracker spellings like "L0ckbit" into anthology ones.
var DefaultSubstitutions = map[string]string{"0": "o"}

// Correlator matches names after removing spaces, lower-casing and applying substitutions.
type Correlator struct {
	replacer *strings.Replacer
}

// New builds a Correlator. A nil or empty map uses DefaultSubstitutions.
func New(substitutions map[string]string) *Correlator {
	if len(substitutions) == 0 {
		substitutions = DefaultSubstitutions
	}
	pairs := []string{" ", ""}
	// longest first so multi-char keys win over their prefixes
	keys := slices.SortedFunc(maps.Keys(substitutions), func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	for _, k := range keys {
		if k == "" {
			continue
		}
		pairs = append(pairs, strings.ToLower(k), strings.ToLower(substitutions[k]))
	}
	return &Correlator{replacer: strings.NewReplacer(pairs...)}
}

// Normalize is the comparison form of a name.
func (c *Correlator) Normalize(name string) string {
	return c.replacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Match reports whether the tracker name appears inside the actor name.
func (c *Correlator) Match(trackerName, actorName string) bool {
	n := c.Normalize(trackerName)
	if n == "" {
		return false
	}
	return strings.Contains(c.Normalize(actorName), n)
}

// Correlate keeps the entries of counts that match any record, in counts
// order and keyed by the tracker name.
func (c *Correlator) Correlate(counts []activity.Count, records []core.ActorRecord) []activity.Count {
	normalized := make([]string, 0, len(records))
	for _, r := range records {
		normalized = append(normalized, c.Normalize(r.Name))
	}

	var out []activity.Count
	for _, entry := range counts {
		n := c.Normalize(entry.Name)
		if n == "" {
			continue
		}
		for _, candidate := range normalized {
			if strings.Contains(candidate, n) {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

// MatchedRecord returns the first record an entry correlated with.
func (c *Correlator) MatchedRecord(trackerName string, records []core.ActorRecord) (core.ActorRecord, bool) {
	for _, r := range records {
		if c.Match(trackerName, r.Name) {
			return r, true
		}
	}
	return core.ActorRecord{}, false
}
