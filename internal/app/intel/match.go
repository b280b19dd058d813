package intel

import (
	"fmt"
	"iter"
	"strings"

	"akamaru/internal/app/core"
)

// Matches is the loose name test used for lookups: candidate contains query,
// ignoring case. Short queries can hit unrelated actors ("apt" matches every
// APT group); callers accept that.
func Matches(query, candidate string) bool {
	return strings.Contains(strings.ToLower(candidate), strings.ToLower(query))
}

// Find returns the first record whose name matches query.
func Find(query string, records []core.ActorRecord) (core.ActorRecord, error) {
	for _, r := range records {
		if Matches(query, r.Name) {
			return r, nil
		}
	}
	return core.ActorRecord{}, fmt.Errorf("%w: %q", core.ErrActorNotFound, query)
}

// FindSeq consumes records until the first match. Source errors abort the search.
func FindSeq(query string, records iter.Seq2[core.ActorRecord, error]) (core.ActorRecord, error) {
	for r, err := range records {
		if err != nil {
			return core.ActorRecord{}, err
		}
		if Matches(query, r.Name) {
			return r, nil
		}
	}
	return core.ActorRecord{}, fmt.Errorf("%w: %q", core.ErrActorNotFound, query)
}
