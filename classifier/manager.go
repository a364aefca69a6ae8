// Package classifier 持有当前规则集，负责持久化、分类与规则来源导入。
package classifier

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"envbadge/cache"
	"envbadge/config"
	"envbadge/logger"
	"envbadge/rules"
	"envbadge/stats"
	"envbadge/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrRuleNotFound     = errors.New("rule not found")
	ErrBlockNotFound    = errors.New("blocklist entry not found")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrNoSources        = errors.New("no rule sources configured")
	ErrAllSourcesFailed = errors.New("all rule sources failed")
)

// Snapshot 某一时刻的规则集，创建后不再修改
type Snapshot struct {
	Rules      []rules.Rule      `json:"rules"`
	Blocklist  []rules.BlockRule `json:"blocklist"`
	Generation uint64            `json:"generation"`
}

// Classification 一次分类的结果
type Classification struct {
	URL string `json:"url"`
	// 只有 http/https 页面会显示标识
	Eligible bool `json:"eligible"`
	rules.MatchResult
	// 命中规则的位置（从 1 开始），未命中为 0
	Position int `json:"position"`
}

func newClassification(url string, res rules.MatchResult) Classification {
	return Classification{
		URL:         url,
		Eligible:    rules.IsEligible(url),
		MatchResult: res,
		Position:    res.RuleIndex + 1,
	}
}

// ImportResult 一次导入的汇总
type ImportResult struct {
	Sources         int      `json:"sources"`
	FailedSources   []string `json:"failed_sources"`
	ImportedRules   int      `json:"imported_rules"`
	ImportedBlocks  int      `json:"imported_blocks"`
	TotalRules      int      `json:"total_rules"`
	Mode            string   `json:"mode"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// Manager 规则集管理器。
// 读取方拿到的是不可变快照；所有修改先持久化再替换快照，失败时当前规则不变。
type Manager struct {
	cfg      *config.Config
	store    *store.FileStore
	loader   *RuleLoader
	matchers *cache.MatcherCache
	eval     *rules.Evaluator
	results  *cache.ResultCache[rules.MatchResult]
	stats    *stats.Stats
	log      zerolog.Logger

	mu         sync.RWMutex // 保护 snap 与 lastImport
	snap       *Snapshot
	lastImport time.Time

	writeMu sync.Mutex // 串行化修改与持久化
}

// NewManager 创建管理器，st 为 nil 时内部创建统计实例
func NewManager(cfg *config.Config, st *stats.Stats) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	fileStore, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("error creating rule store: %w", err)
	}
	results, err := cache.NewResultCache[rules.MatchResult](cfg.Cache.ResultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating result cache: %w", err)
	}
	if st == nil {
		st = stats.NewStats()
	}

	matchers := cache.NewMatcherCache()
	return &Manager{
		cfg:      cfg,
		store:    fileStore,
		loader:   NewRuleLoader(&cfg.Rules),
		matchers: matchers,
		eval:     rules.NewEvaluator(matchers),
		results:  results,
		stats:    st,
		log:      logger.Component("classifier"),
		snap:     &Snapshot{Rules: []rules.Rule{}, Blocklist: []rules.BlockRule{}},
	}, nil
}

// Load 从规则文件加载规则集。文件中没有规则，或规则列表为空时写入内置默认规则。
func (m *Manager) Load() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	raw, err := m.store.Load()
	if err != nil {
		return err
	}

	blocklist := rules.NormalizeBlocklist(raw.Blocklist)
	ruleList := rules.Normalize(raw.Rules)
	if !raw.HasRules || len(ruleList) == 0 {
		m.log.Info().Str("path", m.store.Path()).Msg("no stored rules, installing defaults")
		return m.commitLocked(rules.DefaultRules(), blocklist)
	}

	m.swapLocked(ruleList, blocklist)
	m.log.Info().Int("rules", len(m.Snapshot().Rules)).Int("blocklist", len(blocklist)).Msg("rules loaded")
	return nil
}

// Snapshot 返回当前规则集
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.snap
}

// Rules returns the current canonical rule list.
func (m *Manager) Rules() []rules.Rule {
	return m.Snapshot().Rules
}

// Blocklist returns the current canonical blocklist.
func (m *Manager) Blocklist() []rules.BlockRule {
	return m.Snapshot().Blocklist
}

// swapLocked 替换快照，需要持有 writeMu
func (m *Manager) swapLocked(ruleList []rules.Rule, blocklist []rules.BlockRule) {
	m.mu.Lock()
	m.snap = &Snapshot{
		Rules:      ruleList,
		Blocklist:  blocklist,
		Generation: m.snap.Generation + 1,
	}
	m.mu.Unlock()

	// 旧结果按代数自然失效，这里只是释放内存
	m.results.Purge()
}

// commitLocked 规范化后先持久化再替换快照，需要持有 writeMu。
// 规则列表为空时使用内置默认规则。
func (m *Manager) commitLocked(ruleList []rules.Rule, blocklist []rules.BlockRule) error {
	ruleList = rules.Canonicalize(ruleList)
	if len(ruleList) == 0 {
		m.log.Info().Msg("rule list emptied, falling back to defaults")
		ruleList = rules.DefaultRules()
	}
	blocklist = rules.CanonicalizeBlocklist(blocklist)
	for _, r := range ruleList {
		if !r.Severity.Valid() {
			m.log.Warn().Str("id", r.ID).Str("severity", string(r.Severity)).Msg("unknown severity, displayed as low")
		}
	}

	if err := m.store.Save(store.Document{Rules: ruleList, Blocklist: blocklist}); err != nil {
		return fmt.Errorf("error saving rules: %w", err)
	}
	m.swapLocked(ruleList, blocklist)
	return nil
}

// update 在当前快照上计算新规则集并提交
func (m *Manager) update(fn func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error)) (Snapshot, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	ruleList, blocklist, err := fn(m.Snapshot())
	if err != nil {
		return Snapshot{}, err
	}
	if err := m.commitLocked(ruleList, blocklist); err != nil {
		return Snapshot{}, err
	}
	return m.Snapshot(), nil
}

func rawRules(list []rules.Rule) []rules.RawRule {
	out := make([]rules.RawRule, 0, len(list))
	for _, r := range list {
		out = append(out, r.Raw())
	}
	return out
}

func rawBlocks(list []rules.BlockRule) []rules.RawBlockRule {
	out := make([]rules.RawBlockRule, 0, len(list))
	for _, b := range list {
		out = append(out, b.Raw())
	}
	return out
}

// ReplaceRules 用原始记录替换规则列表
func (m *Manager) ReplaceRules(raw []rules.RawRule) ([]rules.Rule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return rules.Normalize(raw), cur.Blocklist, nil
	})
	return snap.Rules, err
}

// AddRule 追加一条规则，raw 为 nil 时使用空白模板。
// 与已有规则重复时保留已有的那条。
func (m *Manager) AddRule(raw *rules.RawRule) ([]rules.Rule, error) {
	next := rules.BlankRule().Raw()
	if raw != nil {
		next = *raw
	}
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return rules.Normalize(append(rawRules(cur.Rules), next)), cur.Blocklist, nil
	})
	return snap.Rules, err
}

// DeleteRule 按 id 删除规则
func (m *Manager) DeleteRule(id string) ([]rules.Rule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		idx := rules.IndexOfRule(cur.Rules, id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		next, _ := rules.RemoveAt(cur.Rules, idx)
		return next, cur.Blocklist, nil
	})
	return snap.Rules, err
}

// MoveRule 调整规则顺序（位置即优先级）
func (m *Manager) MoveRule(from, to int) ([]rules.Rule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		next, ok := rules.Move(cur.Rules, from, to)
		if !ok {
			return nil, nil, fmt.Errorf("%w: move %d -> %d with %d rules", ErrIndexOutOfRange, from, to, len(cur.Rules))
		}
		return next, cur.Blocklist, nil
	})
	return snap.Rules, err
}

// ToggleRule 启用或禁用规则
func (m *Manager) ToggleRule(id string, enabled bool) ([]rules.Rule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		idx := rules.IndexOfRule(cur.Rules, id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
		}
		next := append([]rules.Rule(nil), cur.Rules...)
		next[idx].Enabled = enabled
		return next, cur.Blocklist, nil
	})
	return snap.Rules, err
}

// ResetRules 恢复内置默认规则，黑名单不变
func (m *Manager) ResetRules() ([]rules.Rule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return rules.DefaultRules(), cur.Blocklist, nil
	})
	return snap.Rules, err
}

// ReplaceBlocklist 用原始记录替换黑名单
func (m *Manager) ReplaceBlocklist(raw []rules.RawBlockRule) ([]rules.BlockRule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return cur.Rules, rules.NormalizeBlocklist(raw), nil
	})
	return snap.Blocklist, err
}

// AddBlock 追加一条黑名单条目，raw 为 nil 时使用空白模板
func (m *Manager) AddBlock(raw *rules.RawBlockRule) ([]rules.BlockRule, error) {
	next := rules.BlankBlockRule().Raw()
	if raw != nil {
		next = *raw
	}
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return cur.Rules, rules.NormalizeBlocklist(append(rawBlocks(cur.Blocklist), next)), nil
	})
	return snap.Blocklist, err
}

// DeleteBlock 按 id 删除黑名单条目
func (m *Manager) DeleteBlock(id string) ([]rules.BlockRule, error) {
	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		idx := rules.IndexOfBlock(cur.Blocklist, id)
		if idx < 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
		}
		next, _ := rules.RemoveAt(cur.Blocklist, idx)
		return cur.Rules, next, nil
	})
	return snap.Blocklist, err
}

// ClearBlocklist 清空黑名单
func (m *Manager) ClearBlocklist() error {
	_, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		return cur.Rules, []rules.BlockRule{}, nil
	})
	return err
}

// Classify 按当前规则集分类 URL，结果按规则集代数缓存
func (m *Manager) Classify(url string) Classification {
	snap := m.Snapshot()

	res, ok := m.results.Get(snap.Generation, url)
	if ok {
		m.stats.IncCacheHits()
	} else {
		m.stats.IncCacheMisses()
		res = m.eval.Evaluate(url, snap.Rules, snap.Blocklist)
		m.results.Set(snap.Generation, url, res)
	}
	m.stats.RecordResult(res)

	return newClassification(url, res)
}

// ClassifyBatch 并发分类多个 URL，结果顺序与输入一致
func (m *Manager) ClassifyBatch(ctx context.Context, urls []string) ([]Classification, error) {
	out := make([]Classification, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = m.Classify(u)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Preview 用未保存的规则与黑名单评估 URL，不影响当前规则集、统计与共享的模式缓存。
// 预览的模式来自请求，使用一次性的评估器，调用结束即释放。
func (m *Manager) Preview(url string, rawRuleList []rules.RawRule, rawBlocklist []rules.RawBlockRule) Classification {
	res := rules.NewEvaluator(nil).Evaluate(url, rules.Normalize(rawRuleList), rules.NormalizeBlocklist(rawBlocklist))
	return newClassification(url, res)
}

// Stats returns the statistics collector.
func (m *Manager) Stats() *stats.Stats {
	return m.stats
}

// Sources 返回规则来源状态
func (m *Manager) Sources() []SourceStatus {
	return m.loader.Statuses()
}

// Import 从配置的来源导入规则。
// merge: 导入的规则追加在本地规则之后，重复时保留本地规则；
// replace: 导入的规则替换本地规则列表。两种模式下黑名单都是合并。
func (m *Manager) Import(ctx context.Context) (ImportResult, error) {
	startTime := time.Now()
	sources := m.cfg.Rules.ImportURLs
	mode := m.cfg.Rules.ImportMode
	if len(sources) == 0 {
		return ImportResult{Mode: mode}, ErrNoSources
	}

	// 下载与解析不持有任何锁
	docs, failed := m.loader.FetchAll(ctx, sources)
	result := ImportResult{
		Sources:       len(sources),
		FailedSources: failed,
		Mode:          mode,
	}

	if len(failed) == len(sources) {
		m.stats.RecordImport(ErrAllSourcesFailed)
		m.log.Warn().Strs("failed", failed).Msg("rule import failed")
		result.DurationSeconds = time.Since(startTime).Seconds()
		return result, ErrAllSourcesFailed
	}

	var importedRules []rules.RawRule
	var importedBlocks []rules.RawBlockRule
	for _, doc := range docs {
		importedRules = append(importedRules, doc.Rules...)
		importedBlocks = append(importedBlocks, doc.Blocklist...)
	}
	result.ImportedRules = len(importedRules)
	result.ImportedBlocks = len(importedBlocks)

	snap, err := m.update(func(cur Snapshot) ([]rules.Rule, []rules.BlockRule, error) {
		var next []rules.Rule
		if mode == config.ImportModeReplace {
			next = rules.Normalize(importedRules)
		} else {
			next = rules.Normalize(append(rawRules(cur.Rules), importedRules...))
		}
		blocks := rules.NormalizeBlocklist(append(rawBlocks(cur.Blocklist), importedBlocks...))
		return next, blocks, nil
	})
	m.stats.RecordImport(err)
	if err != nil {
		return result, err
	}

	m.mu.Lock()
	m.lastImport = time.Now()
	m.mu.Unlock()

	result.TotalRules = len(snap.Rules)
	result.DurationSeconds = time.Since(startTime).Seconds()
	m.log.Info().
		Int("sources", result.Sources).
		Int("failed", len(failed)).
		Int("imported", result.ImportedRules).
		Int("total", result.TotalRules).
		Str("mode", mode).
		Msg("rules imported")
	return result, nil
}

// LastImport returns the time of the last successful import.
func (m *Manager) LastImport() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastImport
}

// Start 启动周期导入。未配置来源或间隔为 0 时不做任何事。
func (m *Manager) Start(ctx context.Context) {
	hours := m.cfg.Rules.UpdateIntervalHours
	if hours <= 0 || len(m.cfg.Rules.ImportURLs) == 0 {
		return
	}

	go func() {
		if _, err := m.Import(ctx); err != nil {
			m.log.Warn().Err(err).Msg("initial rule import failed")
		}

		ticker := time.NewTicker(time.Duration(hours) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := m.Import(ctx); err != nil {
					m.log.Warn().Err(err).Msg("periodic rule import failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CacheStats 模式缓存与结果缓存的状态
func (m *Manager) CacheStats() map[string]interface{} {
	hits, misses := m.matchers.Stats()
	return map[string]interface{}{
		"compiled_patterns": m.matchers.Len(),
		"pattern_hits":      hits,
		"pattern_misses":    misses,
		"cached_results":    m.results.Len(),
		"generation":        m.Snapshot().Generation,
	}
}
