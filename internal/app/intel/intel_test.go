package intel

import (
	"errors"
	"iter"
	"strings"
	"testing"

	"akamaru/internal/app/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIndexSectorsHaveKeywords(t *testing.T) {
	idx := DefaultIndex()
	sectors := idx.Sectors()
	require.Len(t, sectors, 12)
	assert.True(t, strings.Compare(sectors[0], sectors[len(sectors)-1]) < 0)

	for _, s := range sectors {
		kw, err := idx.Keywords(s)
		require.NoError(t, err, s)
		assert.NotEmpty(t, kw, s)
	}
}

func TestKeywordsUnsupportedSector(t *testing.T) {
	idx := DefaultIndex()
	_, err := idx.Keywords("agriculture")
	assert.True(t, errors.Is(err, core.ErrUnsupportedSector))
	assert.False(t, idx.Supports("agriculture"))
	assert.True(t, idx.Supports(" Financial "))
}

func TestExtend(t *testing.T) {
	idx, err := NewIndex(map[string][]string{"Maritime": {"shipping", " port "}, "law": {"attorney"}})
	require.NoError(t, err)

	kw, err := idx.Keywords("maritime")
	require.NoError(t, err)
	assert.Equal(t, []string{"shipping", "port"}, kw)

	kw, _ = idx.Keywords("law")
	assert.Contains(t, kw, "attorney")
	assert.Contains(t, kw, "law firms")

	_, err = NewIndex(map[string][]string{"empty": {" "}})
	assert.Error(t, err)
}

func TestIndexIsolation(t *testing.T) {
	a := DefaultIndex()
	require.NoError(t, a.Extend(map[string][]string{"financial": {"crypto exchange"}}))
	kw, _ := DefaultIndex().Keywords("financial")
	assert.NotContains(t, kw, "crypto exchange")
}

func records(names ...string) []core.ActorRecord {
	out := make([]core.ActorRecord, 0, len(names))
	for _, n := range names {
		out = append(out, core.ActorRecord{Name: n, Source: core.SourceAnthology})
	}
	return out
}

func TestFilterBySector(t *testing.T) {
	in := []core.ActorRecord{
		{Name: "Alpha", Description: "Targets the energy and oil industry."},
		{Name: "Miner", Description: "Runs cryptocurrency-mining botnets."},
		{Name: "Beta", Description: "Focuses on retail chains."},
		{Name: "alpha", Description: "Duplicate energy entry."},
		{Name: "Gamma", Description: "Hits NUCLEAR plants."},
		{Name: "Delta", Description: "Attacks petroleum refineries."},
	}
	out, err := FilterBySector(DefaultIndex(), in, "ics")
	require.NoError(t, err)

	var names []string
	for _, r := range out {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Alpha", "Delta"}, names)
}

func TestFilterNeverReturnsNonMatching(t *testing.T) {
	idx := DefaultIndex()
	in := []core.ActorRecord{
		{Name: "A", Description: "bank heists"},
		{Name: "B", Description: "gaming studios"},
		{Name: "C", Description: "hospital networks"},
		{Name: "D", Description: ""},
	}
	for _, sector := range idx.Sectors() {
		f, err := idx.NewFilter(sector)
		require.NoError(t, err)
		kw, _ := idx.Keywords(sector)
		for _, r := range f.Apply(in) {
			cleaned := f.Clean(r.Description)
			found := false
			for _, k := range kw {
				if strings.Contains(cleaned, k) {
					found = true
				}
			}
			assert.True(t, found, "%s kept %s", sector, r.Name)
		}
	}
}

func TestFilterUnsupportedSector(t *testing.T) {
	_, err := FilterBySector(DefaultIndex(), records("A"), "space")
	assert.True(t, errors.Is(err, core.ErrUnsupportedSector))
}

func seqOf(items []core.ActorRecord, failAt int) iter.Seq2[core.ActorRecord, error] {
	return func(yield func(core.ActorRecord, error) bool) {
		for i, r := range items {
			if i == failAt {
				if !yield(core.ActorRecord{}, core.ParseFailure("test", "", "broken entry")) {
					return
				}
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

func TestFilterSeq(t *testing.T) {
	f, err := DefaultIndex().NewFilter("financial")
	require.NoError(t, err)

	in := []core.ActorRecord{
		{Name: "One", Description: "targets bank customers"},
		{Name: "Two", Description: "broken"},
		{Name: "Three", Description: "unrelated"},
		{Name: "ONE", Description: "bank again"},
		{Name: "Four", Description: "payment card skimming"},
	}
	var kept []string
	var errs int
	for r, err := range f.Seq(seqOf(in, 1)) {
		if err != nil {
			errs++
			continue
		}
		kept = append(kept, r.Name)
	}
	assert.Equal(t, []string{"One", "Four"}, kept)
	assert.Equal(t, 1, errs)
}

func TestFilterSeqStopsEarly(t *testing.T) {
	f, _ := DefaultIndex().NewFilter("telecom")
	in := []core.ActorRecord{
		{Name: "A", Description: "telecom"},
		{Name: "B", Description: "telephony"},
	}
	for r := range f.Seq(seqOf(in, -1)) {
		assert.Equal(t, "A", r.Name)
		break
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("Sandworm", "Sandworm Team"))
	assert.True(t, Matches("sandworm", "SANDWORM TEAM"))
	assert.False(t, Matches("zzz", "Sandworm Team"))
	assert.True(t, Matches("", "anything"))
}

func TestFind(t *testing.T) {
	in := records("APT28", "Sandworm Team", "Sandworm Clone")
	r, err := Find("sandworm", in)
	require.NoError(t, err)
	assert.Equal(t, "Sandworm Team", r.Name)

	_, err = Find("Lazarus", in)
	assert.True(t, errors.Is(err, core.ErrActorNotFound))
}

func TestFindSeq(t *testing.T) {
	in := records("Conti", "LockBit", "LockBit Black")
	r, err := FindSeq("lockbit", seqOf(in, -1))
	require.NoError(t, err)
	assert.Equal(t, "LockBit", r.Name)

	_, err = FindSeq("lockbit", seqOf(in, 0))
	assert.True(t, errors.Is(err, core.ErrSourceParse))

	_, err = FindSeq("akira", seqOf(in, -1))
	assert.True(t, errors.Is(err, core.ErrActorNotFound))
}
