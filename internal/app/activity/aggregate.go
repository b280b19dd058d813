// Package activity summarizes ransomware-tracker events per actor.
package activity

import (
	"time"

	"akamaru/internal/app/core"
	"akamaru/internal/app/intel"
)

// Count is the number of events attributed to one actor name.
type Count struct {
	Name  string
	Count int
}

// Summary is the result of Aggregate. First and Last are nil when no event was seen.
type Summary struct {
	Counts []Count
	First  *time.Time
	Last   *time.Time
}

// Aggregate counts events per actor name in first-seen order and tracks the
// observed date range.
//
// The range is updated the way existing reports were produced: the first
// event seeds both bounds, a name seen for the first time never moves them,
// and a repeated name moves First when earlier, otherwise Last when later.
func Aggregate(events []core.ActivityEvent) Summary {
	var s Summary
	index := make(map[string]int)

	for i, ev := range events {
		if i == 0 {
			first, last := ev.Date, ev.Date
			s.First, s.Last = &first, &last
		}
		pos, seen := index[ev.ActorName]
		if !seen {
			index[ev.ActorName] = len(s.Counts)
			s.Counts = append(s.Counts, Count{Name: ev.ActorName, Count: 1})
			continue
		}
		s.Counts[pos].Count++
		switch {
		case ev.Date.Before(*s.First):
			*s.First = ev.Date
		case ev.Date.After(*s.Last):
			*s.Last = ev.Date
		}
	}
	return s
}

// Map returns counts keyed by actor name.
func (s Summary) Map() map[string]int {
	out := make(map[string]int, len(s.Counts))
	for _, c := range s.Counts {
		out[c.Name] = c.Count
	}
	return out
}

// Total is the number of events aggregated.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c.Count
	}
	return n
}

// Window returns the summary as a profile activity window, or nil when empty.
func (s Summary) Window() *core.ActivityWindow {
	if s.First == nil {
		return nil
	}
	return &core.ActivityWindow{First: *s.First, Last: *s.Last, Count: s.Total()}
}

// FilterByActor keeps events whose actor name matches query.
func FilterByActor(events []core.ActivityEvent, query string) []core.ActivityEvent {
	var out []core.ActivityEvent
	for _, ev := range events {
		if intel.Matches(query, ev.ActorName) {
			out = append(out, ev)
		}
	}
	return out
}
