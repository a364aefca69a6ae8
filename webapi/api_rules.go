package webapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"envbadge/rules"
)

// handleRules 规则列表：GET 读取，PUT 替换，POST 追加，DELETE 按 id 删除
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSONSuccess(w, "Rules retrieved successfully", s.mgr.Rules())

	case http.MethodPut:
		var payload interface{}
		if err := decodeJSON(w, r, &payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		list, err := s.mgr.ReplaceRules(rawRulesFrom(payload, "rules"))
		if err != nil {
			s.writeManagerError(w, "save rules", err)
			return
		}
		s.writeJSONSuccess(w, "Rules saved successfully", list)

	case http.MethodPost:
		body, err := readBody(w, r)
		if err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		// 空请求体追加空白模板
		var raw *rules.RawRule
		if len(bytes.TrimSpace(body)) > 0 {
			var record map[string]interface{}
			if err := json.Unmarshal(body, &record); err != nil {
				s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			parsed := rules.RawRuleFromMap(record)
			raw = &parsed
		}
		list, err := s.mgr.AddRule(raw)
		if err != nil {
			s.writeManagerError(w, "add rule", err)
			return
		}
		s.writeJSONSuccess(w, "Rule added successfully", list)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.writeJSONError(w, "id cannot be empty", http.StatusBadRequest)
			return
		}
		list, err := s.mgr.DeleteRule(id)
		if err != nil {
			s.writeManagerError(w, "delete rule", err)
			return
		}
		s.writeJSONSuccess(w, "Rule deleted successfully", list)

	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}

// handleRulesMove 调整规则顺序
func (s *Server) handleRulesMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		From *int `json:"from"`
		To   *int `json:"to"`
	}
	if err := decodeJSON(w, r, &payload); err != nil || payload.From == nil || payload.To == nil {
		s.writeJSONError(w, "Request body must contain from and to", http.StatusBadRequest)
		return
	}

	list, err := s.mgr.MoveRule(*payload.From, *payload.To)
	if err != nil {
		s.writeManagerError(w, "move rule", err)
		return
	}
	s.writeJSONSuccess(w, "Rule moved successfully", list)
}

// handleRulesToggle 启用或禁用规则
func (s *Server) handleRulesToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		ID      string `json:"id"`
		Enabled *bool  `json:"enabled"`
	}
	if err := decodeJSON(w, r, &payload); err != nil || payload.ID == "" || payload.Enabled == nil {
		s.writeJSONError(w, "Request body must contain id and enabled", http.StatusBadRequest)
		return
	}

	list, err := s.mgr.ToggleRule(payload.ID, *payload.Enabled)
	if err != nil {
		s.writeManagerError(w, "toggle rule", err)
		return
	}
	s.writeJSONSuccess(w, "Rule updated successfully", list)
}

// handleRulesReset 恢复默认规则
func (s *Server) handleRulesReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	list, err := s.mgr.ResetRules()
	if err != nil {
		s.writeManagerError(w, "reset rules", err)
		return
	}
	s.writeJSONSuccess(w, "Default rules restored", list)
}

// handleRulesDefaults 返回内置默认规则（不保存）
func (s *Server) handleRulesDefaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSONSuccess(w, "Default rules retrieved successfully", rules.DefaultRules())
}

// handleRulesSuggest 根据页面地址推测一条规则（不保存）
func (s *Server) handleRulesSuggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeJSONError(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	s.writeJSONSuccess(w, "Rule suggested", rules.SuggestRule(url))
}

// handleBlocklist 黑名单：GET 读取，PUT 替换，POST 追加，DELETE 删除单条（带 id）或清空
func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSONSuccess(w, "Blocklist retrieved successfully", s.mgr.Blocklist())

	case http.MethodPut:
		var payload interface{}
		if err := decodeJSON(w, r, &payload); err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		list, err := s.mgr.ReplaceBlocklist(rawBlocksFrom(payload, "blocklist"))
		if err != nil {
			s.writeManagerError(w, "save blocklist", err)
			return
		}
		s.writeJSONSuccess(w, "Blocklist saved successfully", list)

	case http.MethodPost:
		body, err := readBody(w, r)
		if err != nil {
			s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		var raw *rules.RawBlockRule
		if len(bytes.TrimSpace(body)) > 0 {
			var record map[string]interface{}
			if err := json.Unmarshal(body, &record); err != nil {
				s.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			parsed := rules.RawBlockRuleFromMap(record)
			raw = &parsed
		}
		list, err := s.mgr.AddBlock(raw)
		if err != nil {
			s.writeManagerError(w, "add blocklist entry", err)
			return
		}
		s.writeJSONSuccess(w, "Blocklist entry added successfully", list)

	case http.MethodDelete:
		if id := r.URL.Query().Get("id"); id != "" {
			list, err := s.mgr.DeleteBlock(id)
			if err != nil {
				s.writeManagerError(w, "delete blocklist entry", err)
				return
			}
			s.writeJSONSuccess(w, "Blocklist entry deleted successfully", list)
			return
		}
		if err := s.mgr.ClearBlocklist(); err != nil {
			s.writeManagerError(w, "clear blocklist", err)
			return
		}
		s.writeJSONSuccess(w, "Blocklist cleared", []rules.BlockRule{})

	default:
		s.writeJSONError(w, "Invalid request method", http.StatusMethodNotAllowed)
	}
}
