package runner

import (
	"strconv"
	"strings"

	"akamaru/internal/app/console"
	"akamaru/internal/app/core"
	"akamaru/internal/app/pipeline"
)

const (
	dateLayout       = "2006-01-02"
	descriptionWidth = 90
)

// printResult renders a query result on the console.
func printResult(res *pipeline.Result, ttps bool) {
	switch res.Mode {
	case pipeline.ModeListSectors:
		console.Headline("Supported sectors")
		console.PrintList(res.Sectors)
	case pipeline.ModeSector:
		printSector(res, ttps)
	case pipeline.ModeActor:
		printActor(res)
	case pipeline.ModeActivity:
		if res.Activity != nil {
			printActivity(res.Activity, "Most active ransomware groups")
		}
	}
	printFailures(res)
}

func printSector(res *pipeline.Result, ttps bool) {
	kb := res.KB.Profiles
	console.Headline("Found %s groups on %s targeting %s", console.Highlight(strconv.Itoa(len(kb))), core.SourceKB, res.Sector)
	console.PrintTable([]string{"ID", "Group", "Associated Groups"}, kbRows(kb))
	if ttps {
		for _, p := range kb {
			console.Headline("Getting %s TTPs", console.Highlight(p.Name))
			printDetails(p)
		}
	}

	anth := res.Anthology.Profiles
	console.Headline("Found %s groups on %s targeting %s", console.Highlight(strconv.Itoa(len(anth))), core.SourceAnthology, res.Sector)
	rows := make([][]string, 0, len(anth))
	for _, p := range anth {
		rows = append(rows, []string{p.Name, console.Truncate(p.Description, descriptionWidth), p.URL})
	}
	console.PrintTable([]string{"Group", "Target", "URL"}, rows)

	if res.Activity != nil {
		printActivity(res.Activity, "Groups of the sector active on ransomlook")
	}
	printAnalysis(res.Analysis)
}

func printActor(res *pipeline.Result) {
	if res.Profile == nil {
		if len(res.Failures) == 0 {
			console.Failure("Group %s not found", console.Highlight(res.Query))
		}
		return
	}
	for _, src := range res.NotFound {
		console.Info("%s not found on %s", res.Query, src)
	}

	if p := res.KB.Single; p != nil {
		console.Headline("%s on %s", console.Highlight(p.Name), core.SourceKB)
		printDetails(*p)
		console.PrintTable([]string{"ID", "Group", "Associated Groups"}, kbRows([]core.ActorProfile{*p}))
	}
	if p := res.Anthology.Single; p != nil {
		console.Headline("%s on %s", console.Highlight(p.Name), core.SourceAnthology)
		if p.Description != "" {
			console.PrintList([]string{p.Description})
		}
		console.Info("More at %s", p.URL)
		if w := p.Activity; w != nil {
			console.Success("%d victims published between %s and %s", w.Count, w.First.Format(dateLayout), w.Last.Format(dateLayout))
		}
	}
	if res.Activity != nil && len(res.Activity.Counts) > 0 {
		printActivity(res.Activity, "Recent ransomware activity")
	}
	printAnalysis(res.Analysis)
}

// printDetails prints the description, navigator and softwares of a
// knowledge-base actor.
func printDetails(p core.ActorProfile) {
	console.Headline("Description:")
	console.PrintList([]string{orUnknown(p.Description)})
	if p.NavigatorURL != "" {
		console.Headline("ATT&CK Navigator:")
		console.PrintList([]string{console.Highlight(p.NavigatorURL)})
	}
	if len(p.Softwares) == 0 {
		return
	}
	rows := make([][]string, 0, len(p.Softwares))
	for i, s := range p.Softwares {
		rows = append(rows, []string{strconv.Itoa(i + 1), s})
	}
	console.PrintTable([]string{"#", "Softwares"}, rows)
}

func printActivity(act *pipeline.ActivityResult, title string) {
	console.Headline("%s", title)
	if len(act.Counts) == 0 {
		console.Info("No activity found")
		return
	}
	rows := make([][]string, 0, len(act.Counts))
	for _, c := range act.Counts {
		rows = append(rows, []string{c.Name, strconv.Itoa(c.Count)})
	}
	console.PrintTable([]string{"Group", "Victims"}, rows)
	if s := act.Summary; s.First != nil {
		console.Info("%d events between %s and %s", s.Total(), s.First.Format(dateLayout), s.Last.Format(dateLayout))
	}
}

func printAnalysis(analysis []pipeline.Analysis) {
	for _, a := range analysis {
		if len(a.Links) == 0 {
			continue
		}
		console.Headline("Analysis of %s", console.Highlight(a.Actor))
		console.PrintList(a.Links)
	}
}

func printFailures(res *pipeline.Result) {
	for _, f := range res.Failures {
		console.Failure("%s unavailable: %v", f.Source, f.Err)
	}
}

func kbRows(profiles []core.ActorProfile) [][]string {
	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{p.Identifier, p.Name, orUnknown(p.Relations)})
	}
	return rows
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
