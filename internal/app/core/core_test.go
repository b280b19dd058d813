package core

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sandworm Team", "sandwormteam"},
		{"  APT-28 ", "apt28"},
		{"Wizard Spider!", "wizardspider"},
		{"LockBit 3.0", "lockbit30"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}

func TestSourceLabels(t *testing.T) {
	assert.Equal(t, "MITRE ATT&CK", SourceKB.String())
	assert.Equal(t, "SentinelOne", SourceAnthology.String())

	s, ok := ParseSource(" SentinelOne ")
	require.True(t, ok)
	assert.Equal(t, SourceAnthology, s)

	_, ok = ParseSource("ransomlook")
	assert.False(t, ok)
}

func TestProfileMerge(t *testing.T) {
	kb := NewProfile(ActorRecord{Name: "Sandworm Team", Identifier: "G0034", Relations: "ELECTRUM, Telebots", Source: SourceKB})
	kb = kb.WithSoftwares([]string{"NotPetya", "BlackEnergy", "NotPetya"})

	an := NewProfile(ActorRecord{Name: "Sandworm", Description: "Targets energy.", Relations: UnknownRelations, Source: SourceAnthology})
	an = an.WithSoftwares([]string{"Industroyer"}).WithActivity(ActivityWindow{Count: 2})

	merged := kb.Merge(an)
	assert.Equal(t, "Sandworm Team", merged.Name)
	assert.Equal(t, []Source{SourceKB, SourceAnthology}, merged.Sources)
	assert.Equal(t, "Targets energy.", merged.Description)
	assert.Equal(t, "ELECTRUM, Telebots", merged.Relations)
	assert.Equal(t, []string{"BlackEnergy", "Industroyer", "NotPetya"}, merged.Softwares)
	require.NotNil(t, merged.Activity)
	assert.Equal(t, 2, merged.Activity.Count)
}

func TestWithSoftwaresEmpty(t *testing.T) {
	p := NewProfile(ActorRecord{Name: "X", Source: SourceKB}).WithSoftwares([]string{" ", ""})
	assert.Nil(t, p.Softwares)
	assert.True(t, p.HasSource(SourceKB))
}

func TestSourceError(t *testing.T) {
	err := Unavailable("ransomlook", "https://example.test/recent", 503, nil)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.False(t, errors.Is(err, ErrSourceParse))
	assert.True(t, IsSourceFailure(err))
	assert.Contains(t, err.Error(), "HTTP 503")

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 503, se.Status)

	perr := ParseFailure("mitre", "", "no table rows")
	assert.True(t, errors.Is(perr, ErrSourceParse))
	assert.Contains(t, perr.Error(), "no table rows")

	assert.False(t, IsSourceFailure(ErrActorNotFound))
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `delay: 1.5
render: true
search:
  engine: brave
correlation:
  substitutions:
    "0": o
    "3": e
sectors:
  maritime: [shipping, port]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	fc, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, fc.Delay)
	assert.True(t, fc.Render)
	assert.Equal(t, "brave", fc.Search.Engine)
	assert.Equal(t, DefaultMaxLinks, fc.Search.MaxLinks)
	assert.Equal(t, DefaultOutputDir, fc.OutputDir)
	assert.Equal(t, map[string]string{"0": "o", "3": "e"}, fc.Correlation.Substitutions)

	cfg := fc.ToConfig()
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"shipping", "port"}, cfg.ExtraSectors["maritime"])
}

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	fc, err := ReadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultFileConfig(), fc)
}

func TestReadConfigFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delay: [oops"), 0o644))

	fc, err := ReadConfigFile(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultDelay, fc.Delay)
}

func TestLoadAPIKeysFromEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvGoogleKeys, "k1, k2,,")
	t.Setenv(EnvBraveKeys, "")

	cfg := &Config{}
	cfg.LoadAPIKeys()
	assert.Equal(t, []string{"k1", "k2"}, cfg.GoogleAPIKeys)
	assert.Empty(t, cfg.BraveAPIKeys)
}
