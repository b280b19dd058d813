package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"akamaru/internal/app/core"
	"akamaru/internal/app/correlate"
	"akamaru/internal/app/intel"
	"akamaru/internal/app/report"
	"akamaru/internal/app/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(records []core.ActorRecord, err error) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
		if err != nil {
			yield(core.ActorRecord{}, err)
		}
	}
}

type fakeKB struct {
	records   []core.ActorRecord
	err       error
	softwares map[string][]string
	calls     int
}

func (f *fakeKB) Actors(context.Context) iter.Seq2[core.ActorRecord, error] {
	f.calls++
	return seq(f.records, f.err)
}

func (f *fakeKB) Softwares(_ context.Context, id string) ([]string, error) {
	return f.softwares[id], nil
}

func (f *fakeKB) Navigator(_ context.Context, id string) (Navigator, error) {
	return Navigator{MatrixURL: "https://navigator/#" + id, LayerURL: "https://layer/" + id}, nil
}

type fakeAnthology struct {
	records []core.ActorRecord
	err     error
	hidden  map[string]core.ActorRecord
}

func (f *fakeAnthology) Actors(context.Context) iter.Seq2[core.ActorRecord, error] {
	return seq(f.records, f.err)
}

func (f *fakeAnthology) Entries(context.Context) iter.Seq2[core.ActorRecord, error] {
	bare := make([]core.ActorRecord, 0, len(f.records))
	for _, r := range f.records {
		r.Description = ""
		bare = append(bare, r)
	}
	return seq(bare, f.err)
}

func (f *fakeAnthology) Describe(_ context.Context, rec core.ActorRecord) (core.ActorRecord, error) {
	for _, r := range f.records {
		if r.Name == rec.Name {
			return r, nil
		}
	}
	return rec, core.ParseFailure("sentinelone", rec.URL, "no target section")
}

func (f *fakeAnthology) Lookup(_ context.Context, name string) (core.ActorRecord, error) {
	if r, ok := f.hidden[name]; ok {
		return r, nil
	}
	return core.ActorRecord{}, fmt.Errorf("%w: %q", core.ErrActorNotFound, name)
}

type fakeActivity struct {
	events []core.ActivityEvent
	err    error
	calls  int
}

func (f *fakeActivity) Recent(context.Context) ([]core.ActivityEvent, error) {
	f.calls++
	return f.events, f.err
}

type fakeSearcher struct {
	queried []string
}

func (f *fakeSearcher) SearchAnalysis(_ context.Context, actor string) ([]string, error) {
	f.queried = append(f.queried, actor)
	return []string{"https://www.sentinelone.com/" + actor}, nil
}

func kbRec(id, name, desc string) core.ActorRecord {
	return core.ActorRecord{Name: name, Identifier: id, Description: desc, Relations: core.UnknownRelations,
		URL: "https://attack.mitre.org/groups/" + id, Source: core.SourceKB}
}

func s1Rec(name, desc string) core.ActorRecord {
	return core.ActorRecord{Name: name, Description: desc, Relations: core.UnknownRelations,
		URL: "https://www.sentinelone.com/anthology/" + name, Source: core.SourceAnthology}
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

type fixture struct {
	kb       *fakeKB
	anth     *fakeAnthology
	activity *fakeActivity
	search   *fakeSearcher
	p        *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		kb: &fakeKB{
			records: []core.ActorRecord{
				kbRec("G0034", "Sandworm Team", "Sandworm Team has targeted energy companies."),
				kbRec("G0032", "Lazarus Group", "Lazarus Group has targeted bank networks."),
				kbRec("G0016", "APT29", "APT29 targets government networks."),
			},
			softwares: map[string][]string{"G0032": {"WannaCry", "HOPLIGHT", "WannaCry"}},
		},
		anth: &fakeAnthology{
			records: []core.ActorRecord{
				s1Rec("LockBit 3.0", "LockBit targets financial services and manufacturing."),
				s1Rec("Akira", "Akira targets education and finance organizations."),
				s1Rec("Rhysida", "Rhysida targets healthcare."),
			},
			hidden: map[string]core.ActorRecord{"Black Basta": s1Rec("Black Basta", "Hidden page.")},
		},
		activity: &fakeActivity{
			events: []core.ActivityEvent{
				{Date: day("2024-03-10"), ActorName: "lockbit3"},
				{Date: day("2024-03-09"), ActorName: "akira"},
				{Date: day("2024-03-08"), ActorName: "lockbit3"},
				{Date: day("2024-03-07"), ActorName: "play"},
			},
		},
		search: &fakeSearcher{},
	}
	f.p = &Pipeline{
		Index:      intel.DefaultIndex(),
		Correlator: correlate.New(nil),
		KB:         f.kb,
		Anthology:  f.anth,
		Activity:   f.activity,
		Searcher:   f.search,
	}
	return f
}

func names(profiles []core.ActorProfile) []string {
	var out []string
	for _, p := range profiles {
		out = append(out, p.Name)
	}
	return out
}

func TestSectorQuery(t *testing.T) {
	f := newFixture()
	res, err := f.p.SectorQuery(context.Background(), "Financial", true)
	require.NoError(t, err)

	assert.Equal(t, ModeSector, res.Mode)
	assert.Equal(t, "financial", res.Sector)
	assert.Equal(t, []string{"Lazarus Group"}, names(res.KB.Profiles))
	assert.Equal(t, []string{"HOPLIGHT", "WannaCry"}, res.KB.Profiles[0].Softwares)
	assert.Equal(t, "https://navigator/#G0032", res.KB.Profiles[0].NavigatorURL)
	assert.Equal(t, []string{"LockBit 3.0", "Akira"}, names(res.Anthology.Profiles))

	require.NotNil(t, res.Activity)
	assert.Equal(t, 2, res.Activity.Counts[0].Count)
	assert.Equal(t, "lockbit3", res.Activity.Counts[0].Name)
	assert.Equal(t, "akira", res.Activity.Counts[1].Name)
	assert.Len(t, res.Activity.Counts, 2)
	assert.Equal(t, []string{"lockbit3", "akira"}, f.search.queried)

	lockbit := res.Anthology.Profiles[0]
	require.NotNil(t, lockbit.Activity)
	assert.Equal(t, 2, lockbit.Activity.Count)
	assert.Equal(t, []string{"https://www.sentinelone.com/lockbit3"}, lockbit.AnalysisLinks)
	assert.Empty(t, res.Failures)
}

func TestSectorQueryWithoutTTPsSkipsEnrichment(t *testing.T) {
	f := newFixture()
	res, err := f.p.SectorQuery(context.Background(), "financial", false)
	require.NoError(t, err)
	require.Len(t, res.KB.Profiles, 1)
	assert.Empty(t, res.KB.Profiles[0].Softwares)
	assert.Empty(t, res.KB.Profiles[0].NavigatorURL)
}

func TestSectorQueryUnsupportedSector(t *testing.T) {
	f := newFixture()
	_, err := f.p.SectorQuery(context.Background(), "agriculture", false)
	assert.True(t, errors.Is(err, core.ErrUnsupportedSector))
	assert.Zero(t, f.kb.calls)
	assert.Zero(t, f.activity.calls)
}

func TestSectorQuerySurvivesFailingSource(t *testing.T) {
	f := newFixture()
	f.kb.records = nil
	f.kb.err = core.Unavailable("mitre", "https://attack.mitre.org/groups/", 503, nil)

	res, err := f.p.SectorQuery(context.Background(), "financial", true)
	require.NoError(t, err)
	assert.Empty(t, res.KB.Profiles)
	assert.Len(t, res.Anthology.Profiles, 2)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.SourceKB.String(), res.Failures[0].Source)
	assert.True(t, errors.Is(res.Failures[0].Err, core.ErrSourceUnavailable))

	w := report.NewWriter(t.TempDir())
	path, err := w.Write(res.Rows(true))
	require.NoError(t, err)
	rows, err := report.Read(path)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSectorQueryKeepsRecordsBeforeFailure(t *testing.T) {
	f := newFixture()
	f.anth.err = core.ParseFailure("sentinelone", "https://www.sentinelone.com/anthology", "layout changed")

	res, err := f.p.SectorQuery(context.Background(), "financial", false)
	require.NoError(t, err)
	assert.Len(t, res.Anthology.Profiles, 2)
	require.Len(t, res.Failures, 1)
	assert.True(t, errors.Is(res.Failures[0].Err, core.ErrSourceParse))
}

func TestSectorQueryReportsUnreachableAnthologyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/anthology" {
			fmt.Fprint(w, `<html><body>
<div class="anthology-entry"><a href="/anthology/akira/"><h3>Akira</h3></a></div>
<div class="anthology-entry"><a href="/anthology/play/"><h3>Play</h3></a></div>
</body></html>`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := newFixture()
	f.p.Anthology = sources.NewAnthology(sources.NewFetcher(sources.FetcherOptions{}), srv.URL, false)

	res, err := f.p.SectorQuery(context.Background(), "financial", false)
	require.NoError(t, err)
	assert.Empty(t, res.Anthology.Profiles)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.SourceAnthology.String(), res.Failures[0].Source)
	assert.True(t, errors.Is(res.Failures[0].Err, core.ErrSourceUnavailable))
	assert.Zero(t, f.activity.calls)
}

func TestSectorQueryTrackerDown(t *testing.T) {
	f := newFixture()
	f.activity.err = core.Unavailable("ransomlook", "https://www.ransomlook.io/recent", 0, errors.New("timeout"))

	res, err := f.p.SectorQuery(context.Background(), "financial", false)
	require.NoError(t, err)
	assert.Nil(t, res.Activity)
	assert.Len(t, res.Anthology.Profiles, 2)
	assert.Empty(t, f.search.queried)
	assert.Len(t, res.Failures, 1)
}

func TestSectorQueryCancelled(t *testing.T) {
	f := newFixture()
	f.kb.err = context.Canceled
	_, err := f.p.SectorQuery(context.Background(), "financial", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestActorQuery(t *testing.T) {
	f := newFixture()
	f.kb.records = append(f.kb.records, kbRec("G0999", "LockBit Operators", "Ransomware."))

	res, err := f.p.ActorQuery(context.Background(), "  lockbit ")
	require.NoError(t, err)
	assert.Equal(t, "lockbit", res.Query)

	require.NotNil(t, res.KB.Single)
	assert.Equal(t, "LockBit Operators", res.KB.Single.Name)
	assert.Equal(t, "https://navigator/#G0999", res.KB.Single.NavigatorURL)

	require.NotNil(t, res.Anthology.Single)
	assert.Equal(t, "LockBit 3.0", res.Anthology.Single.Name)
	assert.Equal(t, "LockBit targets financial services and manufacturing.", res.Anthology.Single.Description)
	require.NotNil(t, res.Anthology.Single.Activity)
	assert.Equal(t, day("2024-03-08"), res.Anthology.Single.Activity.First)
	assert.Equal(t, day("2024-03-10"), res.Anthology.Single.Activity.Last)

	require.NotNil(t, res.Activity)
	assert.Equal(t, map[string]int{"lockbit3": 2}, res.Activity.Summary.Map())
	assert.Equal(t, []string{"lockbit3"}, f.search.queried)

	require.NotNil(t, res.Profile)
	assert.Equal(t, []core.Source{core.SourceKB, core.SourceAnthology}, res.Profile.Sources)
	assert.Empty(t, res.NotFound)
}

func TestActorQuerySurvivesFailingKB(t *testing.T) {
	f := newFixture()
	f.kb.records = nil
	f.kb.err = core.Unavailable("mitre", "https://attack.mitre.org/groups/", 503, nil)

	res, err := f.p.ActorQuery(context.Background(), "Akira")
	require.NoError(t, err)
	assert.Nil(t, res.KB.Single)
	require.NotNil(t, res.Anthology.Single)
	assert.Equal(t, "Akira", res.Anthology.Single.Name)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.SourceKB.String(), res.Failures[0].Source)
	assert.True(t, errors.Is(res.Failures[0].Err, core.ErrSourceUnavailable))
	assert.Empty(t, res.NotFound)

	rows := res.Rows(false)
	require.Len(t, rows, 1)
	assert.Equal(t, "Akira", rows[0].Group)
	assert.Equal(t, core.SourceAnthology.String(), rows[0].Source)
}

func TestActorQueryUnreachableAnthologyPage(t *testing.T) {
	f := newFixture()
	anth := &unreachablePages{fakeAnthology: f.anth}
	f.p.Anthology = anth

	res, err := f.p.ActorQuery(context.Background(), "Akira")
	require.NoError(t, err)
	require.NotNil(t, res.Anthology.Single)
	assert.Empty(t, res.Anthology.Single.Description)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, core.SourceAnthology.String(), res.Failures[0].Source)
}

// unreachablePages lists actors but fails every description page.
type unreachablePages struct {
	*fakeAnthology
}

func (u *unreachablePages) Describe(_ context.Context, rec core.ActorRecord) (core.ActorRecord, error) {
	return rec, core.Unavailable("sentinelone", rec.URL, 503, nil)
}

func TestActorQueryHiddenAnthologyPage(t *testing.T) {
	f := newFixture()
	res, err := f.p.ActorQuery(context.Background(), "Black Basta")
	require.NoError(t, err)

	assert.Nil(t, res.KB.Single)
	assert.Equal(t, []string{core.SourceKB.String()}, res.NotFound)
	require.NotNil(t, res.Anthology.Single)
	assert.Equal(t, "Hidden page.", res.Anthology.Single.Description)
	require.NotNil(t, res.Activity)
	assert.Empty(t, res.Activity.Counts)
}

func TestActorQueryNotFound(t *testing.T) {
	f := newFixture()
	res, err := f.p.ActorQuery(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Equal(t, []string{core.SourceKB.String(), core.SourceAnthology.String()}, res.NotFound)
	assert.Nil(t, res.Profile)
	assert.True(t, res.Empty())
	assert.Zero(t, f.activity.calls)
}

func TestActorQueryEmptyName(t *testing.T) {
	_, err := newFixture().p.ActorQuery(context.Background(), " ")
	assert.Error(t, err)
}

func TestActivityQuery(t *testing.T) {
	f := newFixture()
	res, err := f.p.ActivityQuery(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Activity)
	assert.Equal(t, map[string]int{"lockbit3": 2, "akira": 1, "play": 1}, res.Activity.Summary.Map())
	assert.Len(t, res.Activity.Counts, 3)
	assert.Empty(t, f.search.queried)
}

func TestActivityQueryFailure(t *testing.T) {
	f := newFixture()
	f.activity.err = core.Unavailable("ransomlook", "https://www.ransomlook.io/recent", 502, nil)
	res, err := f.p.ActivityQuery(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.Activity)
	assert.Len(t, res.Failures, 1)
}

func TestListSectors(t *testing.T) {
	res := newFixture().p.ListSectors()
	assert.Equal(t, ModeListSectors, res.Mode)
	assert.Contains(t, res.Sectors, "financial")
	assert.IsIncreasing(t, res.Sectors)
}

func TestNewBuildsLiveSources(t *testing.T) {
	cfg := &core.Config{ExtraSectors: map[string][]string{"crypto": {"exchange"}}}
	p, err := New(cfg, nil)
	require.NoError(t, err)
	assert.True(t, p.Index.Supports("crypto"))
	assert.NotNil(t, p.Searcher)

	_, err = New(&core.Config{ExtraSectors: map[string][]string{"empty": {}}}, nil)
	assert.Error(t, err)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "sector", ModeSector.String())
	assert.Equal(t, "none", Mode(42).String())
}
