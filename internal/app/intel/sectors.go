package intel

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"akamaru/internal/app/core"
)

// Index maps sector ids to the keywords that flag an actor's victimology
// and the substrings stripped from descriptions before matching.
type Index struct {
	keywords  map[string][]string
	blacklist map[string][]string
}

var defaultKeywords = map[string][]string{
	"financial":  {"economic", "bank", "financial", "finance", "investment firms", "payment card"},
	"healthcare": {"health", "healthcare", "hospital", "pharmaceutical", "medical", "disease", "COVID-19"},
	"ics": {
		"ICS", "manufacturing", "manufacturers", "oil", "mining", "chemistry", "energy",
		"critical infrastructure", "nuclear", "petroleum", "semicondutor", "airline", "aerospace",
		"aviation", "engineering industries", "industrial control systems",
	},
	"defense":    {"military", "defense", "army"},
	"government": {"government", "presidential election", "democratic", "diplomatic", "legal services", "political", "ministries", "judiciary", "policy"},
	"technology": {"technology", "big tech", "high tech", "high-tech", "video game", "gaming", "internet service"},
	"telecom":    {"telecom", "telephony"},
	"education":  {"education", "college", "universit", "academic", "school", "educational"},
	"retail":     {"retail", "commerce", "restaurant"},
	"media": {
		"media sector", "television", "media outlets", "journalist", "opposition bloggers",
		"regional news", "high-profile personalities", "social media",
	},
	"law":     {"law firms", "legal services"},
	"tourism": {"hospitality", "tourism", "travel", "hotel"},
}

var defaultBlacklist = map[string][]string{
	// keeps crypto-miner operators out of "mining"
	"ics": {"cryptocurrency-mining"},
}

// DefaultIndex returns the built-in sector table.
func DefaultIndex() *Index {
	idx := &Index{
		keywords:  make(map[string][]string, len(defaultKeywords)),
		blacklist: make(map[string][]string, len(defaultBlacklist)),
	}
	for k, v := range defaultKeywords {
		idx.keywords[k] = slices.Clone(v)
	}
	for k, v := range defaultBlacklist {
		idx.blacklist[k] = slices.Clone(v)
	}
	return idx
}

// NewIndex builds the default table extended with extra sectors.
func NewIndex(extra map[string][]string) (*Index, error) {
	idx := DefaultIndex()
	if err := idx.Extend(extra); err != nil {
		return nil, err
	}
	return idx, nil
}

// Extend adds sectors or keywords. A sector without keywords is rejected.
func (i *Index) Extend(extra map[string][]string) error {
	for sector, words := range extra {
		id := normalizeSector(sector)
		if id == "" {
			return fmt.Errorf("sector with empty id")
		}
		var clean []string
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				clean = append(clean, w)
			}
		}
		if len(clean) == 0 {
			return fmt.Errorf("sector %q: keyword list is empty", sector)
		}
		for _, w := range clean {
			if !slices.Contains(i.keywords[id], w) {
				i.keywords[id] = append(i.keywords[id], w)
			}
		}
	}
	return nil
}

// Supports reports whether the sector id is known.
func (i *Index) Supports(sector string) bool {
	_, ok := i.keywords[normalizeSector(sector)]
	return ok
}

// Keywords returns the sector's keyword list or ErrUnsupportedSector.
func (i *Index) Keywords(sector string) ([]string, error) {
	words, ok := i.keywords[normalizeSector(sector)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedSector, sector)
	}
	return slices.Clone(words), nil
}

// Blacklist returns the substrings to strip for a sector; may be empty.
func (i *Index) Blacklist(sector string) []string {
	return slices.Clone(i.blacklist[normalizeSector(sector)])
}

// Sectors lists supported sector ids in sorted order.
func (i *Index) Sectors() []string {
	return slices.Sorted(maps.Keys(i.keywords))
}

func normalizeSector(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
