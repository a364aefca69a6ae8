package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"envbadge/config"
	"envbadge/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func newTestManager(t *testing.T, mutate func(cfg *config.Config)) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "rules.yaml")
	if mutate != nil {
		mutate(cfg)
	}

	m, err := NewManager(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	return m
}

func TestLoadInstallsDefaults(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Equal(t, rules.DefaultRules(), m.Rules())
	assert.Empty(t, m.Blocklist())

	_, err := os.Stat(m.cfg.Store.Path)
	require.NoError(t, err, "Expected defaults to be persisted")

	// 第二个实例从文件读取同样的规则
	again, err := NewManager(m.cfg, nil)
	require.NoError(t, err)
	require.NoError(t, again.Load())
	assert.Equal(t, m.Rules(), again.Rules())
}

func TestLoadFallsBackToDefaultsForEmptyRuleList(t *testing.T) {
	docs := map[string]string{
		"empty list": `{"rules": [], "blocklist": [{"pattern": "*://a/*"}]}`,
		"null list":  `{"rules": null, "blocklist": [{"pattern": "*://a/*"}]}`,
		"no objects": `{"rules": [1, "x", null], "blocklist": [{"pattern": "*://a/*"}]}`,
	}
	for name, content := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			m := newTestManager(t, func(cfg *config.Config) { cfg.Store.Path = path })
			assert.Equal(t, rules.DefaultRules(), m.Rules())
			assert.Equal(t, "PROD", m.Classify("http://myapp-pro3.cfapps.example.com/").Label)

			// 黑名单照常加载
			require.Len(t, m.Blocklist(), 1)
			assert.Equal(t, rules.StableBlockID("*://a/*"), m.Blocklist()[0].ID)
		})
	}
}

func TestDeletingEveryRuleRestoresDefaults(t *testing.T) {
	m := newTestManager(t, nil)

	list, err := m.ReplaceRules(nil)
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultRules(), list)

	for _, r := range rules.DefaultRules() {
		list, err = m.DeleteRule(r.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, rules.DefaultRules(), list)
}

func TestMutationsPersistCanonicalRules(t *testing.T) {
	m := newTestManager(t, nil)
	ids := m.Rules()

	_, err := m.ToggleRule(ids[2].ID, false)
	require.NoError(t, err)
	_, err = m.MoveRule(8, 0)
	require.NoError(t, err)
	_, err = m.DeleteRule(ids[4].ID)
	require.NoError(t, err)
	_, err = m.AddBlock(nil)
	require.NoError(t, err)

	assert.Equal(t, rules.Canonicalize(m.Rules()), m.Rules())
	assert.Equal(t, rules.CanonicalizeBlocklist(m.Blocklist()), m.Blocklist())

	again, err := NewManager(m.cfg, nil)
	require.NoError(t, err)
	require.NoError(t, again.Load())
	assert.Equal(t, m.Rules(), again.Rules())
	assert.Equal(t, rules.Canonicalize(again.Rules()), again.Rules())
	assert.Equal(t, m.Blocklist(), again.Blocklist())
	assert.False(t, again.Rules()[rules.IndexOfRule(again.Rules(), ids[2].ID)].Enabled)
	assert.Equal(t, ids[8].ID, again.Rules()[0].ID)
}

func TestClassify(t *testing.T) {
	m := newTestManager(t, nil)

	c := m.Classify("http://192.168.1.5:8080/")
	assert.Equal(t, rules.Matched, c.Kind)
	assert.Equal(t, "LOCAL", c.Label)
	assert.Equal(t, 5, c.Position)
	assert.True(t, c.Eligible)

	c = m.Classify("http://unrelated.example.org/")
	assert.Equal(t, rules.NoMatch, c.Kind)
	assert.Equal(t, 0, c.Position)

	c = m.Classify("chrome://localhost/")
	assert.False(t, c.Eligible)
}

func TestClassifyUsesResultCache(t *testing.T) {
	m := newTestManager(t, nil)

	m.Classify("http://localhost/")
	m.Classify("http://localhost/")

	got := m.Stats().GetStats()
	assert.Equal(t, int64(1), got["cache_hits"])
	assert.Equal(t, int64(1), got["cache_misses"])
	assert.Equal(t, int64(2), got["matched"])
	assert.Equal(t, 1, m.CacheStats()["cached_results"])
}

func TestMutationsInvalidateCachedResults(t *testing.T) {
	m := newTestManager(t, nil)
	assert.Equal(t, "LOCAL", m.Classify("http://localhost/").Label)

	_, err := m.AddRule(&rules.RawRule{Pattern: str("*"), Label: str("ANY")})
	require.NoError(t, err)
	assert.Equal(t, "LOCAL", m.Classify("http://localhost/").Label, "Expected an appended rule to have the lowest priority")

	list, err := m.MoveRule(len(m.Rules())-1, 0)
	require.NoError(t, err)
	assert.Equal(t, "ANY", list[0].Label)
	assert.Equal(t, "ANY", m.Classify("http://localhost/").Label)
}

func TestAddRule(t *testing.T) {
	m := newTestManager(t, nil)

	list, err := m.AddRule(nil)
	require.NoError(t, err)
	require.Len(t, list, 10)
	assert.Equal(t, "*://example.com/*", list[9].Pattern)
	assert.Equal(t, "ENV", m.Classify("https://example.com/page").Label)

	// 重复规则保留已有的那条
	list, err = m.AddRule(&rules.RawRule{Pattern: str("*://localhost*/*"), Label: str("LOCAL"), Color: str(rules.ColorLocal), Severity: str("low")})
	require.NoError(t, err)
	assert.Len(t, list, 10)
}

func TestDeleteAndToggleRule(t *testing.T) {
	m := newTestManager(t, nil)
	localhostID := m.Rules()[2].ID

	_, err := m.ToggleRule(localhostID, false)
	require.NoError(t, err)
	assert.Equal(t, rules.NoMatch, m.Classify("http://localhost/").Kind)

	_, err = m.ToggleRule(localhostID, true)
	require.NoError(t, err)
	assert.Equal(t, rules.Matched, m.Classify("http://localhost/").Kind)

	list, err := m.DeleteRule(localhostID)
	require.NoError(t, err)
	assert.Len(t, list, 8)
	assert.Equal(t, -1, rules.IndexOfRule(list, localhostID))

	_, err = m.DeleteRule(localhostID)
	assert.True(t, errors.Is(err, ErrRuleNotFound))
	_, err = m.ToggleRule("missing", true)
	assert.True(t, errors.Is(err, ErrRuleNotFound))
}

func TestMoveRuleOutOfRange(t *testing.T) {
	m := newTestManager(t, nil)
	before := m.Rules()

	_, err := m.MoveRule(0, 9)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.Equal(t, before, m.Rules())
}

func TestReplaceAndResetRules(t *testing.T) {
	m := newTestManager(t, nil)

	list, err := m.ReplaceRules([]rules.RawRule{
		{Pattern: str("*://a/*"), Label: str("A")},
		{Pattern: str("*://a/*"), Label: str("A")},
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = m.ResetRules()
	require.NoError(t, err)
	assert.Equal(t, rules.DefaultRules(), list)
}

func TestBlocklist(t *testing.T) {
	m := newTestManager(t, nil)

	block, err := m.ReplaceBlocklist([]rules.RawBlockRule{{Pattern: str("*://192.168.3.27/*")}})
	require.NoError(t, err)
	require.Len(t, block, 1)

	c := m.Classify("http://192.168.3.27/admin")
	assert.Equal(t, rules.Blocked, c.Kind)
	assert.Equal(t, block[0].ID, c.BlockID)
	assert.Equal(t, rules.Matched, m.Classify("http://192.168.3.28/").Kind)

	block, err = m.AddBlock(nil)
	require.NoError(t, err)
	require.Len(t, block, 2)

	block, err = m.DeleteBlock(block[1].ID)
	require.NoError(t, err)
	assert.Len(t, block, 1)
	_, err = m.DeleteBlock("b_missing")
	assert.True(t, errors.Is(err, ErrBlockNotFound))

	require.NoError(t, m.ClearBlocklist())
	assert.Empty(t, m.Blocklist())
	assert.Equal(t, rules.Matched, m.Classify("http://192.168.3.27/admin").Kind)
}

func TestFailedSaveKeepsCurrentRules(t *testing.T) {
	m := newTestManager(t, nil)
	before := m.Snapshot()

	// 目标路径变成目录后重命名会失败
	require.NoError(t, os.Remove(m.cfg.Store.Path))
	require.NoError(t, os.Mkdir(m.cfg.Store.Path, 0755))

	_, err := m.AddRule(nil)
	assert.Error(t, err)
	assert.Equal(t, before, m.Snapshot())
}

func TestPreview(t *testing.T) {
	m := newTestManager(t, nil)

	c := m.Preview("http://x/",
		[]rules.RawRule{{Pattern: str("*://y/*")}, {Pattern: str("*://x/*"), Label: str("X")}},
		nil)
	assert.Equal(t, rules.Matched, c.Kind)
	assert.Equal(t, "X", c.Label)
	assert.Equal(t, 2, c.Position)

	c = m.Preview("http://x/",
		[]rules.RawRule{{Pattern: str("*://x/*")}},
		[]rules.RawBlockRule{{Pattern: str("*://x/*")}})
	assert.Equal(t, rules.Blocked, c.Kind)

	assert.Equal(t, rules.DefaultRules(), m.Rules(), "Expected preview not to change stored rules")
	assert.Equal(t, int64(0), m.Stats().GetStats()["total_classified"])
}

func TestPreviewLeavesSharedMatcherCacheUntouched(t *testing.T) {
	m := newTestManager(t, nil)
	m.Classify("http://localhost/")
	before := m.CacheStats()["compiled_patterns"]

	for i := 0; i < 200; i++ {
		pattern := fmt.Sprintf("*://host-%d/*", i)
		c := m.Preview(fmt.Sprintf("http://host-%d/", i), []rules.RawRule{{Pattern: &pattern}}, nil)
		require.Equal(t, rules.Matched, c.Kind)
	}
	assert.Equal(t, before, m.CacheStats()["compiled_patterns"])
}

func TestClassifyBatch(t *testing.T) {
	m := newTestManager(t, nil)
	urls := []string{
		"http://myapp-pro3.cfapps.example.com/",
		"http://unrelated.example.org/",
		"http://10.1.2.3/",
		"https://shop-qa.cfapps.example.com/",
	}

	out, err := m.ClassifyBatch(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, "PROD", out[0].Label)
	assert.Equal(t, rules.NoMatch, out[1].Kind)
	assert.Equal(t, "LOCAL", out[2].Label)
	assert.Equal(t, "QA", out[3].Label)
	for i, c := range out {
		assert.Equal(t, urls[i], c.URL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.ClassifyBatch(ctx, urls)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportMerge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`
rules:
  - pattern: "*://*.corp.example/*"
    label: CORP
  - pattern: "*://localhost*/*"
    label: LOCAL
    color: "#16a34a"
    severity: low
blocklist:
  - pattern: "*://10.9.9.9/*"
`))
	}))
	defer srv.Close()

	m := newTestManager(t, func(cfg *config.Config) {
		cfg.Rules.ImportURLs = []string{srv.URL + "/rules.yaml"}
	})

	res, err := m.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sources)
	assert.Empty(t, res.FailedSources)
	assert.Equal(t, 2, res.ImportedRules)
	assert.Equal(t, 10, res.TotalRules, "Expected the duplicate localhost rule to be dropped")

	assert.Equal(t, "CORP", m.Classify("https://wiki.corp.example/").Label)
	assert.Equal(t, rules.Blocked, m.Classify("http://10.9.9.9/").Kind)
	assert.False(t, m.LastImport().IsZero())

	// 再次导入结果不变
	res, err = m.Import(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalRules)
	assert.Len(t, m.Blocklist(), 1)
}

func TestImportReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"pattern": "*", "label": "ANY"}]`), 0644))

	m := newTestManager(t, func(cfg *config.Config) {
		cfg.Rules.ImportURLs = []string{path, "file://" + filepath.Join(t.TempDir(), "missing.json")}
		cfg.Rules.ImportMode = config.ImportModeReplace
	})

	res, err := m.Import(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.FailedSources, 1)
	assert.Equal(t, 1, res.TotalRules)
	assert.Equal(t, "ANY", m.Classify("http://localhost/").Label)

	statuses := m.Sources()
	require.Len(t, statuses, 2)
}

func TestImportErrors(t *testing.T) {
	m := newTestManager(t, nil)
	_, err := m.Import(context.Background())
	assert.ErrorIs(t, err, ErrNoSources)

	m = newTestManager(t, func(cfg *config.Config) {
		cfg.Rules.ImportURLs = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	})
	_, err = m.Import(context.Background())
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	assert.Equal(t, rules.DefaultRules(), m.Rules())
	assert.Equal(t, int64(1), m.Stats().GetStats()["import_failures"])
}
