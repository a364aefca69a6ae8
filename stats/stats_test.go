package stats

import (
	"errors"
	"sync"
	"testing"

	"envbadge/rules"

	"github.com/stretchr/testify/assert"
)

func TestGetTopLabels(t *testing.T) {
	s := NewStats()

	record := func(label string, n int) {
		for i := 0; i < n; i++ {
			s.RecordResult(rules.MatchResult{Kind: rules.Matched, Label: label})
		}
	}
	record("LOCAL", 3)
	record("PROD", 2)
	record("QA", 2)
	record("ENV", 1)

	top3 := s.GetTopLabels(3)
	assert.Len(t, top3, 3, "Expected 3 labels")
	assert.Equal(t, "LOCAL", top3[0].Label)
	assert.Equal(t, int64(3), top3[0].Count)
	assert.Equal(t, "PROD", top3[1].Label)
	assert.Equal(t, "QA", top3[2].Label)

	// Test with limit > number of labels
	assert.Len(t, s.GetTopLabels(10), 4)

	// Test with limit = 0
	assert.Len(t, s.GetTopLabels(0), 0, "Expected 0 labels")

	// Test with empty stats
	s.Reset()
	assert.Len(t, s.GetTopLabels(5), 0, "Expected 0 labels from empty stats")
}

func TestRecordResultCounters(t *testing.T) {
	s := NewStats()

	s.RecordResult(rules.MatchResult{Kind: rules.Matched, Label: "PROD"})
	s.RecordResult(rules.MatchResult{Kind: rules.Blocked, BlockID: "b_1"})
	s.RecordResult(rules.MatchResult{Kind: rules.Blocked, BlockID: "b_1"})
	s.RecordResult(rules.MatchResult{Kind: rules.NoMatch})
	s.IncCacheHits()
	s.IncCacheMisses()
	s.IncCacheMisses()
	s.RecordImport(nil)
	s.RecordImport(errors.New("boom"))

	got := s.GetStats()
	assert.Equal(t, int64(4), got["total_classified"])
	assert.Equal(t, int64(1), got["matched"])
	assert.Equal(t, int64(2), got["blocked"])
	assert.Equal(t, int64(1), got["no_match"])
	assert.InDelta(t, 33.33, got["cache_hit_rate"].(float64), 0.01)
	assert.Equal(t, int64(2), got["imports"])
	assert.Equal(t, int64(1), got["import_failures"])
	assert.Equal(t, map[string]int64{"b_1": 2}, got["blocked_by"])
	assert.Contains(t, got, "system_stats")
}

func TestRecordResultConcurrent(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordResult(rules.MatchResult{Kind: rules.Matched, Label: "LOCAL"})
		}()
	}
	wg.Wait()

	top := s.GetTopLabels(1)
	assert.Equal(t, int64(50), top[0].Count)
}

func TestSystemStats(t *testing.T) {
	sys := SystemStats()
	assert.Contains(t, sys, "cpu_cores")
	assert.Contains(t, sys, "goroutines")
	assert.Contains(t, sys, "mem_usage_pct")
}
