package webapi

import (
	"fmt"
	"net/http"

	"envbadge/logger"
)

// 单次批量分类的最大 URL 数量
const maxBatchSize = 1000

// handleClassify 按当前规则分类单个 URL
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeJSONError(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	s.writeJSONSuccess(w, "URL classified", s.mgr.Classify(url))
}

// handleClassifyBatch 并发分类多个 URL
func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		URLs []string `json:"urls"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(payload.URLs) > maxBatchSize {
		s.writeJSONError(w, fmt.Sprintf("Too many urls (max %d)", maxBatchSize), http.StatusBadRequest)
		return
	}

	results, err := s.mgr.ClassifyBatch(r.Context(), payload.URLs)
	if err != nil {
		s.writeJSONError(w, "Batch classification aborted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeJSONSuccess(w, fmt.Sprintf("%d urls classified", len(results)), results)
}

// handlePreview 用未保存的规则评估 URL
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload map[string]interface{}
	if err := decodeJSON(w, r, &payload); err != nil {
		s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	url, _ := payload["url"].(string)
	if url == "" {
		s.writeJSONError(w, "url cannot be empty", http.StatusBadRequest)
		return
	}

	result := s.mgr.Preview(url, rawRulesFrom(payload, "rules"), rawBlocksFrom(payload, "blocklist"))
	s.writeJSONSuccess(w, "Preview complete", result)
}

// handleImport 立即从配置的来源导入规则
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	// 检查是否有导入正在进行中
	s.importMutex.Lock()
	if s.isImportBusy {
		s.importMutex.Unlock()
		s.writeJSONError(w, "Rule import is already in progress, please wait", http.StatusConflict)
		return
	}
	s.isImportBusy = true
	s.importMutex.Unlock()

	defer func() {
		s.importMutex.Lock()
		s.isImportBusy = false
		s.importMutex.Unlock()
	}()

	result, err := s.mgr.Import(r.Context())
	if err != nil {
		s.writeManagerError(w, "import rules", err)
		return
	}
	logger.Infof("[Import] Manual import completed: %d rules from %d sources", result.TotalRules, result.Sources)
	s.writeJSONSuccess(w, "Rules imported successfully", result)
}

// handleSources 规则来源状态
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSONSuccess(w, "Sources retrieved successfully", map[string]interface{}{
		"configured":  s.cfg.Rules.ImportURLs,
		"mode":        s.cfg.Rules.ImportMode,
		"statuses":    s.mgr.Sources(),
		"last_import": s.mgr.LastImport(),
	})
}

// handleStats 统计信息
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	data := s.mgr.Stats().GetStats()
	data["cache"] = s.mgr.CacheStats()
	data["rules"] = len(s.mgr.Rules())
	data["blocklist"] = len(s.mgr.Blocklist())
	s.writeJSONSuccess(w, "Stats retrieved successfully", data)
}

// handleClearStats 重置统计
func (s *Server) handleClearStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	s.mgr.Stats().Reset()
	s.writeJSONSuccess(w, "Stats cleared successfully", nil)
}
