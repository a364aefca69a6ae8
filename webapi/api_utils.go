package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"envbadge/classifier"
	"envbadge/logger"
	"envbadge/rules"
)

// 请求体最大 1MB
const maxBodySize = 1 << 20

// writeJSONError 写入 JSON 错误响应
func (s *Server) writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Message: message,
	})
}

// writeJSONSuccess 写入 JSON 成功响应
func (s *Server) writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// writeManagerError 按错误类型选择状态码
func (s *Server) writeManagerError(w http.ResponseWriter, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, classifier.ErrRuleNotFound), errors.Is(err, classifier.ErrBlockNotFound):
		status = http.StatusNotFound
	case errors.Is(err, classifier.ErrIndexOutOfRange), errors.Is(err, classifier.ErrNoSources):
		status = http.StatusBadRequest
	case errors.Is(err, classifier.ErrAllSourcesFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("[WebAPI] %s failed: %v", action, err)
	}
	s.writeJSONError(w, fmt.Sprintf("Failed to %s: %v", action, err), status)
}

// corsMiddleware CORS 中间件
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// readBody 读取请求体，超过限制时返回错误
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
}

// decodeJSON 解码请求体到 v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// recordList 接受数组或 {key: [...]}，非对象条目被跳过
func recordList(v interface{}, key string) []map[string]interface{} {
	var items []interface{}
	switch t := v.(type) {
	case []interface{}:
		items = t
	case map[string]interface{}:
		items, _ = t[key].([]interface{})
	}

	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func rawRulesFrom(v interface{}, key string) []rules.RawRule {
	records := recordList(v, key)
	out := make([]rules.RawRule, 0, len(records))
	for _, m := range records {
		out = append(out, rules.RawRuleFromMap(m))
	}
	return out
}

func rawBlocksFrom(v interface{}, key string) []rules.RawBlockRule {
	records := recordList(v, key)
	out := make([]rules.RawBlockRule, 0, len(records))
	for _, m := range records {
		out = append(out, rules.RawBlockRuleFromMap(m))
	}
	return out
}
