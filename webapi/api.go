package webapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"envbadge/classifier"
	"envbadge/config"
	"envbadge/logger"
)

// APIResponse 统一的 API 响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server Web API 服务器
type Server struct {
	cfg      *config.Config
	mgr      *classifier.Manager
	listener *http.Server

	importMutex  sync.Mutex
	isImportBusy bool
}

// NewServer 创建新的 Web API 服务器
func NewServer(cfg *config.Config, mgr *classifier.Manager) *Server {
	return &Server{
		cfg: cfg,
		mgr: mgr,
	}
}

// Handler 返回注册了全部路由的 handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/rules/move", s.handleRulesMove)
	mux.HandleFunc("/api/rules/toggle", s.handleRulesToggle)
	mux.HandleFunc("/api/rules/reset", s.handleRulesReset)
	mux.HandleFunc("/api/rules/defaults", s.handleRulesDefaults)
	mux.HandleFunc("/api/rules/suggest", s.handleRulesSuggest)

	mux.HandleFunc("/api/blocklist", s.handleBlocklist)

	mux.HandleFunc("/api/classify", s.handleClassify)
	mux.HandleFunc("/api/classify/batch", s.handleClassifyBatch)
	mux.HandleFunc("/api/preview", s.handlePreview)

	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/sources", s.handleSources)

	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/clear", s.handleClearStats)
	mux.HandleFunc("/health", s.handleHealth)

	return s.corsMiddleware(mux)
}

// Start 启动 Web API 服务，阻塞直到服务关闭
func (s *Server) Start() error {
	if !s.cfg.WebUI.Enabled {
		logger.Info("WebAPI is disabled")
		return nil
	}

	s.listener = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.WebUI.ListenPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("Web API server started on http://localhost:%d", s.cfg.WebUI.ListenPort)
	if err := s.listener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Shutdown(ctx)
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONSuccess(w, "ok", map[string]interface{}{
		"status":     "healthy",
		"rules":      len(s.mgr.Rules()),
		"generation": s.mgr.Snapshot().Generation,
	})
}
