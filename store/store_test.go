package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"envbadge/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("rules.YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatFromPath("/tmp/rules.json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = FormatFromPath("rules.txt")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestLoadMissingFile(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "rules.yaml"))
	require.NoError(t, err)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.False(t, doc.HasRules, "Expected a missing file to report no rules key")
	assert.Empty(t, doc.Rules)
	assert.Empty(t, doc.Blocklist)
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"rules.yaml", "rules.json"} {
		t.Run(name, func(t *testing.T) {
			s, err := NewFileStore(filepath.Join(t.TempDir(), name))
			require.NoError(t, err)

			want := Document{
				Rules: rules.DefaultRules(),
				Blocklist: rules.NormalizeBlocklist([]rules.RawBlockRule{
					rules.BlockRule{Pattern: "*://192.168.3.27/*", Enabled: true}.Raw(),
				}),
			}
			require.NoError(t, s.Save(want))

			raw, err := s.Load()
			require.NoError(t, err)
			assert.True(t, raw.HasRules)
			assert.Equal(t, want.Rules, rules.Normalize(raw.Rules))
			assert.Equal(t, want.Blocklist, rules.NormalizeBlocklist(raw.Blocklist))

			entries, err := os.ReadDir(filepath.Dir(s.Path()))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "Expected no temp files to be left behind")
		})
	}
}

func TestSaveEmptyListKeepsRulesKey(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "rules.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.Save(Document{}))

	raw, err := s.Load()
	require.NoError(t, err)
	assert.True(t, raw.HasRules, "Expected the rules key to be written for an empty list")
	assert.Empty(t, raw.Rules)
}

func TestParseTolerant(t *testing.T) {
	data := []byte(`
rules:
  - pattern: "*://x/*"
    label: X
    enabled: "yes"
    severity: 3
  - just a string
  - 42
  - label: Y
blocklist: "not a list"
`)
	doc, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, doc.Rules, 2)
	assert.Empty(t, doc.Blocklist)

	out := rules.Normalize(doc.Rules)
	require.Len(t, out, 2)
	assert.Equal(t, "*://x/*", out[0].Pattern)
	assert.True(t, out[0].Enabled, "Expected a non-boolean enabled to fall back to true")
	assert.Equal(t, rules.SeverityLow, out[0].Severity)
	assert.Equal(t, "", out[1].Pattern)
}

func TestParseRulesNotAList(t *testing.T) {
	doc, err := Parse([]byte(`{"rules": {"pattern": "*"}}`), FormatJSON)
	require.NoError(t, err)
	assert.True(t, doc.HasRules)
	assert.Empty(t, doc.Rules)
}

func TestParseBareList(t *testing.T) {
	doc, err := Parse([]byte(`[{"pattern":"*://a/*","label":"A"}]`), FormatAuto)
	require.NoError(t, err)
	assert.True(t, doc.HasRules)
	require.Len(t, doc.Rules, 1)
	assert.Equal(t, "A", *doc.Rules[0].Label)
}

func TestParseEmptyAndInvalid(t *testing.T) {
	doc, err := Parse([]byte("  \n"), FormatYAML)
	require.NoError(t, err)
	assert.False(t, doc.HasRules)

	_, err = Parse([]byte("{not json"), FormatJSON)
	assert.Error(t, err)
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Load()
	assert.Error(t, err)
}
