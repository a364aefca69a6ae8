package stats

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"envbadge/logger"
	"envbadge/rules"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats 运行统计
type Stats struct {
	mu             sync.RWMutex
	classified     int64
	matched        int64
	blocked        int64
	noMatch        int64
	cacheHits      int64
	cacheMisses    int64
	imports        int64
	importFailures int64

	// 按标签统计命中次数
	labels map[string]*int64
	// 按黑名单条目统计拦截次数
	blocks map[string]*int64

	startTime time.Time
}

// NewStats 创建新的统计实例
func NewStats() *Stats {
	// 第一次调用 Percent 会返回 0，所以在这里预热一下
	go func() {
		if _, err := cpu.Percent(time.Second, false); err != nil {
			logger.Warnf("无法初始化 CPU 使用率统计: %v", err)
		}
	}()

	return &Stats{
		labels:    make(map[string]*int64),
		blocks:    make(map[string]*int64),
		startTime: time.Now(),
	}
}

// RecordResult 记录一次分类结果
func (s *Stats) RecordResult(res rules.MatchResult) {
	atomic.AddInt64(&s.classified, 1)
	switch {
	case res.IsMatched():
		atomic.AddInt64(&s.matched, 1)
		atomic.AddInt64(s.getOrCreateCounter(res.Label, s.labels), 1)
	case res.Kind == rules.Blocked:
		atomic.AddInt64(&s.blocked, 1)
		atomic.AddInt64(s.getOrCreateCounter(res.BlockID, s.blocks), 1)
	default:
		atomic.AddInt64(&s.noMatch, 1)
	}
}

// IncCacheHits 增加缓存命中计数
func (s *Stats) IncCacheHits() {
	atomic.AddInt64(&s.cacheHits, 1)
}

// IncCacheMisses 增加缓存未命中计数
func (s *Stats) IncCacheMisses() {
	atomic.AddInt64(&s.cacheMisses, 1)
}

// RecordImport 记录一次来源导入
func (s *Stats) RecordImport(err error) {
	atomic.AddInt64(&s.imports, 1)
	if err != nil {
		atomic.AddInt64(&s.importFailures, 1)
	}
}

// getOrCreateCounter 安全地获取或创建计数器
func (s *Stats) getOrCreateCounter(key string, counterMap map[string]*int64) *int64 {
	s.mu.RLock()
	counter, ok := counterMap[key]
	s.mu.RUnlock()

	if ok {
		return counter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 再次检查，防止在获取写锁期间其他 goroutine 已经创建
	if counter, ok := counterMap[key]; ok {
		return counter
	}
	newCounter := int64(0)
	counterMap[key] = &newCounter
	return &newCounter
}

// LabelCount 用于排序的结构体
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// GetTopLabels 获取命中次数最多的标签，次数相同按标签排序
func (s *Stats) GetTopLabels(limit int) []LabelCount {
	if limit <= 0 {
		return []LabelCount{}
	}

	s.mu.RLock()
	out := make([]LabelCount, 0, len(s.labels))
	for label, counter := range s.labels {
		out = append(out, LabelCount{Label: label, Count: atomic.LoadInt64(counter)})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetStats 获取所有统计数据
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	blocksCopy := make(map[string]int64, len(s.blocks))
	for k, v := range s.blocks {
		blocksCopy[k] = atomic.LoadInt64(v)
	}
	s.mu.RUnlock()

	hits := atomic.LoadInt64(&s.cacheHits)
	lookups := hits + atomic.LoadInt64(&s.cacheMisses)
	var hitRate float64
	if lookups > 0 {
		hitRate = float64(hits) / float64(lookups) * 100
	}

	return map[string]interface{}{
		"total_classified": atomic.LoadInt64(&s.classified),
		"matched":          atomic.LoadInt64(&s.matched),
		"blocked":          atomic.LoadInt64(&s.blocked),
		"no_match":         atomic.LoadInt64(&s.noMatch),
		"cache_hits":       hits,
		"cache_misses":     atomic.LoadInt64(&s.cacheMisses),
		"cache_hit_rate":   hitRate,
		"imports":          atomic.LoadInt64(&s.imports),
		"import_failures":  atomic.LoadInt64(&s.importFailures),
		"top_labels":       s.GetTopLabels(10),
		"blocked_by":       blocksCopy,
		"system_stats":     SystemStats(),
		"uptime_seconds":   time.Since(s.startTime).Seconds(),
	}
}

// SystemStats 获取系统状态 (使用 gopsutil)
func SystemStats() map[string]interface{} {
	// 使用非阻塞方式获取CPU使用率，避免阻塞统计调用
	cpuUsage := []float64{0.0}
	cpuUsageCh := make(chan []float64, 1)
	go func() {
		usage, err := cpu.Percent(time.Millisecond*200, false)
		if err != nil || len(usage) == 0 {
			if err != nil {
				logger.Warnf("无法获取 CPU 使用率: %v", err)
			}
			cpuUsageCh <- []float64{0.0}
			return
		}
		cpuUsageCh <- usage
	}()

	select {
	case cpuUsage = <-cpuUsageCh:
	case <-time.After(100 * time.Millisecond):
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warnf("无法获取内存信息: %v", err)
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	sysStats := map[string]interface{}{
		"cpu_cores":       runtime.NumCPU(),
		"cpu_usage_pct":   cpuUsage[0],
		"mem_total_mb":    uint64(0),
		"mem_used_mb":     uint64(0),
		"mem_usage_pct":   0.0,
		"go_mem_alloc_mb": memStats.Alloc / 1024 / 1024,
		"goroutines":      runtime.NumGoroutine(),
	}
	if memInfo != nil {
		sysStats["mem_total_mb"] = memInfo.Total / 1024 / 1024
		sysStats["mem_used_mb"] = memInfo.Used / 1024 / 1024
		sysStats["mem_usage_pct"] = memInfo.UsedPercent
	}
	return sysStats
}

// Reset 重置统计
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.classified, 0)
	atomic.StoreInt64(&s.matched, 0)
	atomic.StoreInt64(&s.blocked, 0)
	atomic.StoreInt64(&s.noMatch, 0)
	atomic.StoreInt64(&s.cacheHits, 0)
	atomic.StoreInt64(&s.cacheMisses, 0)
	atomic.StoreInt64(&s.imports, 0)
	atomic.StoreInt64(&s.importFailures, 0)

	s.mu.Lock()
	s.labels = make(map[string]*int64)
	s.blocks = make(map[string]*int64)
	s.mu.Unlock()
}
