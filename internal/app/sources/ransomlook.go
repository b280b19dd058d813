package sources

import (
	"context"
	"strings"
	"time"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"
)

const (
	RansomlookBaseURL = "https://www.ransomlook.io"

	sourceRansomlook = "ransomlook"
)

// Ransomlook reads the recent-victims table of the ransomware tracker.
type Ransomlook struct {
	fetcher *Fetcher
	base    string
	verbose bool
}

// NewRansomlook returns the activity adapter. An empty base uses the public site.
func NewRansomlook(f *Fetcher, base string, verbose bool) *Ransomlook {
	if base == "" {
		base = RansomlookBaseURL
	}
	return &Ransomlook{fetcher: f, base: strings.TrimRight(base, "/"), verbose: verbose}
}

// Recent returns the tracker's recent events, newest first as published.
func (r *Ransomlook) Recent(ctx context.Context) ([]core.ActivityEvent, error) {
	u := r.base + "/recent"
	doc, err := r.fetcher.Document(ctx, sourceRansomlook, u, "tr")
	if err != nil {
		return nil, err
	}

	rows := doc.Find("tr")
	if rows.Length() < 2 {
		return nil, core.ParseFailure(sourceRansomlook, u, "activity table has no rows")
	}

	var events []core.ActivityEvent
	skipped := 0
	// first row is the header
	for i := 1; i < rows.Length(); i++ {
		row := rows.Eq(i)
		name := cellText(row.Find("a").First())
		fields := strings.Fields(row.Text())
		if name == "" || len(fields) == 0 {
			skipped++
			continue
		}
		date, err := time.Parse(time.DateOnly, fields[0])
		if err != nil {
			skipped++
			continue
		}
		events = append(events, core.ActivityEvent{Date: date, ActorName: name})
	}
	if len(events) == 0 {
		return nil, core.ParseFailure(sourceRansomlook, u, "no dated rows in %d table rows", rows.Length()-1)
	}
	console.Logv(r.verbose, "[RANSOMLOOK] %d events parsed, %d rows skipped", len(events), skipped)
	return events, nil
}
