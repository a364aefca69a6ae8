package classifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"envbadge/config"
	"envbadge/logger"
	"envbadge/store"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxConcurrentDownloads = 5
	defaultDownloadTimeout        = 15 * time.Second
	// 单个来源最大 5MB
	maxSourceSize = 5 * 1024 * 1024
)

// 来源状态
const (
	SourceActive = "active"
	SourceFailed = "failed"
	SourceBad    = "bad" // 连续失败 3 次
)

// SourceStatus 规则来源的最近一次导入状态
type SourceStatus struct {
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	RuleCount  int       `json:"rule_count"`
	BlockCount int       `json:"block_count"`
	LastUpdate time.Time `json:"last_update"`
	LastError  string    `json:"last_error"`
	FailCount  int       `json:"fail_count"`
}

type sourceState struct {
	SourceStatus
	etag         string
	lastModified string
	doc          store.RawDocument
}

// RuleLoader 从远程地址或本地文件读取规则文档
type RuleLoader struct {
	client        *retryablehttp.Client
	maxConcurrent int

	mu      sync.RWMutex
	sources map[string]*sourceState
}

// NewRuleLoader 创建加载器
func NewRuleLoader(cfg *config.RulesConfig) *RuleLoader {
	timeout := defaultDownloadTimeout
	maxConcurrent := defaultMaxConcurrentDownloads
	if cfg != nil {
		if cfg.ImportTimeoutSeconds > 0 {
			timeout = time.Duration(cfg.ImportTimeoutSeconds) * time.Second
		}
		if cfg.MaxConcurrentImports > 0 {
			maxConcurrent = cfg.MaxConcurrentImports
		}
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = leveledLogger{logger.Component("loader")}

	return &RuleLoader{
		client:        client,
		maxConcurrent: maxConcurrent,
		sources:       make(map[string]*sourceState),
	}
}

// Fetch 读取单个来源。远程来源使用 ETag/Last-Modified，未变化时返回上次的结果。
func (rl *RuleLoader) Fetch(ctx context.Context, source string) (store.RawDocument, error) {
	doc, err := rl.fetch(ctx, source)
	rl.updateStatus(source, doc, err)
	return doc, err
}

func (rl *RuleLoader) fetch(ctx context.Context, source string) (store.RawDocument, error) {
	if isRemote(source) {
		return rl.downloadRemote(ctx, source)
	}
	return loadLocalFile(strings.TrimPrefix(source, "file://"))
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func formatOf(path string) store.Format {
	f, err := store.FormatFromPath(path)
	if err != nil {
		return store.FormatAuto
	}
	return f
}

func (rl *RuleLoader) downloadRemote(ctx context.Context, source string) (store.RawDocument, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return store.RawDocument{}, err
	}

	rl.mu.RLock()
	prev := rl.sources[source]
	var etag, lastModified string
	if prev != nil {
		etag, lastModified = prev.etag, prev.lastModified
	}
	rl.mu.RUnlock()

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := rl.client.Do(req)
	if err != nil {
		return store.RawDocument{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified && prev != nil {
		return prev.doc, nil
	}
	if resp.StatusCode != http.StatusOK {
		return store.RawDocument{}, fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return store.RawDocument{}, err
	}

	format := store.FormatAuto
	if u, err := url.Parse(source); err == nil {
		format = formatOf(u.Path)
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		format = store.FormatJSON
	}

	doc, err := store.Parse(data, format)
	if err != nil {
		return store.RawDocument{}, err
	}

	rl.mu.Lock()
	st := rl.state(source)
	st.etag = resp.Header.Get("ETag")
	st.lastModified = resp.Header.Get("Last-Modified")
	st.doc = doc
	rl.mu.Unlock()

	return doc, nil
}

func loadLocalFile(path string) (store.RawDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return store.RawDocument{}, err
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return store.RawDocument{}, err
	}
	return store.Parse(data, formatOf(path))
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("source exceeds %dMB limit", maxSourceSize/1024/1024)
	}
	return data, nil
}

// state 需要持有 rl.mu 写锁
func (rl *RuleLoader) state(source string) *sourceState {
	st, ok := rl.sources[source]
	if !ok {
		st = &sourceState{SourceStatus: SourceStatus{URL: source, Status: SourceActive}}
		rl.sources[source] = st
	}
	return st
}

func (rl *RuleLoader) updateStatus(source string, doc store.RawDocument, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st := rl.state(source)
	st.LastUpdate = time.Now()
	if err != nil {
		st.LastError = err.Error()
		st.FailCount++
		st.Status = SourceFailed
		if st.FailCount >= 3 {
			st.Status = SourceBad
		}
		return
	}
	st.RuleCount = len(doc.Rules)
	st.BlockCount = len(doc.Blocklist)
	st.LastError = ""
	st.FailCount = 0
	st.Status = SourceActive
}

// FetchAll 并发读取所有来源，结果按来源顺序返回。
// 单个来源失败不会中断其它来源，失败的来源在 failed 中列出，对应位置为空文档。
func (rl *RuleLoader) FetchAll(ctx context.Context, sources []string) (docs []store.RawDocument, failed []string) {
	docs = make([]store.RawDocument, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rl.maxConcurrent)
	for i, source := range sources {
		i, source := i, source
		g.Go(func() error {
			docs[i], errs[i] = rl.Fetch(gctx, source)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			failed = append(failed, sources[i])
		}
	}
	return docs, failed
}

// Statuses 返回所有来源的状态，按地址排序
func (rl *RuleLoader) Statuses() []SourceStatus {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	out := make([]SourceStatus, 0, len(rl.sources))
	for _, st := range rl.sources {
		out = append(out, st.SourceStatus)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// leveledLogger 将 retryablehttp 的日志转到 zerolog
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) emit(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		ev = ev.Interface(fmt.Sprint(kv[i]), kv[i+1])
	}
	ev.Msg(msg)
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { l.emit(l.log.Error(), msg, kv) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { l.emit(l.log.Debug(), msg, kv) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { l.emit(l.log.Debug(), msg, kv) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { l.emit(l.log.Warn(), msg, kv) }
