package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"envbadge/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const remoteDoc = `{"rules": [{"pattern": "*://a/*", "label": "A"}], "blocklist": [{"pattern": "*://a/admin*"}]}`

func TestFetchRemoteWithETag(t *testing.T) {
	var requests, notModified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(remoteDoc))
	}))
	defer srv.Close()

	rl := NewRuleLoader(&config.RulesConfig{})
	doc, err := rl.Fetch(context.Background(), srv.URL+"/rules")
	require.NoError(t, err)
	require.Len(t, doc.Rules, 1)
	assert.Equal(t, "A", *doc.Rules[0].Label)
	assert.Len(t, doc.Blocklist, 1)

	doc, err = rl.Fetch(context.Background(), srv.URL+"/rules")
	require.NoError(t, err)
	assert.Len(t, doc.Rules, 1, "Expected the cached document on 304")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
	assert.Equal(t, int32(1), atomic.LoadInt32(&notModified))

	statuses := rl.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, SourceActive, statuses[0].Status)
	assert.Equal(t, 1, statuses[0].RuleCount)
	assert.Equal(t, 1, statuses[0].BlockCount)
}

func TestFetchBadStatusMarksSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rl := NewRuleLoader(nil)
	source := srv.URL + "/missing.yaml"

	_, err := rl.Fetch(context.Background(), source)
	require.Error(t, err)
	assert.Equal(t, SourceFailed, rl.Statuses()[0].Status)

	rl.Fetch(context.Background(), source)
	rl.Fetch(context.Background(), source)
	st := rl.Statuses()[0]
	assert.Equal(t, SourceBad, st.Status)
	assert.Equal(t, 3, st.FailCount)
	assert.Contains(t, st.LastError, "404")
}

func TestFetchSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat(" ", maxSourceSize+1)))
	}))
	defer srv.Close()

	rl := NewRuleLoader(nil)
	_, err := rl.Fetch(context.Background(), srv.URL+"/big.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("rules:\n  - pattern: \"*://b/*\"\n    label: B\n"), 0644))

	rl := NewRuleLoader(nil)
	for _, source := range []string{yamlPath, "file://" + yamlPath} {
		doc, err := rl.Fetch(context.Background(), source)
		require.NoError(t, err, source)
		require.Len(t, doc.Rules, 1)
		assert.Equal(t, "*://b/*", *doc.Rules[0].Pattern)
	}

	_, err := rl.Fetch(context.Background(), filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestFetchAllKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var sources []string
	for _, label := range []string{"ONE", "TWO", "THREE"} {
		path := filepath.Join(dir, strings.ToLower(label)+".json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"label": "`+label+`"}]`), 0644))
		sources = append(sources, path)
	}
	sources = append(sources, filepath.Join(dir, "missing.json"))

	rl := NewRuleLoader(&config.RulesConfig{MaxConcurrentImports: 2})
	docs, failed := rl.FetchAll(context.Background(), sources)
	require.Len(t, docs, 4)
	assert.Equal(t, "ONE", *docs[0].Rules[0].Label)
	assert.Equal(t, "TWO", *docs[1].Rules[0].Label)
	assert.Equal(t, "THREE", *docs[2].Rules[0].Label)
	assert.Empty(t, docs[3].Rules)
	assert.Equal(t, []string{sources[3]}, failed)
}
