// Package store 规则文件的读写。
//
// 文件格式由扩展名决定（.yaml/.yml 或 .json），顶层结构为：
//
//	rules:     [ {id, pattern, label, color, severity, enabled}, ... ]
//	blocklist: [ {id, pattern, enabled}, ... ]
//
// 读取时容忍损坏的记录：类型不符的字段按缺省处理，非对象的条目被跳过。
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"envbadge/rules"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat 文件扩展名既不是 YAML 也不是 JSON
var ErrUnsupportedFormat = errors.New("unsupported rule file format")

// Format 规则文档的编码格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	// FormatAuto 未知来源：YAML 解析器同样接受 JSON
	FormatAuto Format = ""
)

// FormatFromPath 根据扩展名判断格式
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return FormatAuto, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// Document 规范化之后的规则文档
type Document struct {
	Rules     []rules.Rule      `json:"rules" yaml:"rules"`
	Blocklist []rules.BlockRule `json:"blocklist" yaml:"blocklist"`
}

// RawDocument 解码得到的原始文档。
// HasRules 表示文件中存在 rules 键；规则列表为空时由调用方回退到默认规则。
type RawDocument struct {
	Rules     []rules.RawRule
	Blocklist []rules.RawBlockRule
	HasRules  bool
}

// Parse 解码规则文档。顶层也可以直接是规则数组。
func Parse(data []byte, format Format) (RawDocument, error) {
	var top any
	if len(bytes.TrimSpace(data)) == 0 {
		return RawDocument{}, nil
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &top); err != nil {
			return RawDocument{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &top); err != nil {
			return RawDocument{}, fmt.Errorf("decode yaml: %w", err)
		}
	}

	var doc RawDocument
	switch v := top.(type) {
	case []any:
		doc.HasRules = true
		doc.Rules = rawRules(v)
	case map[string]any:
		if list, ok := v["rules"]; ok {
			doc.HasRules = true
			items, _ := list.([]any)
			doc.Rules = rawRules(items)
		}
		if list, ok := v["blocklist"].([]any); ok {
			doc.Blocklist = rawBlockRules(list)
		}
	}
	return doc, nil
}

func rawRules(items []any) []rules.RawRule {
	out := make([]rules.RawRule, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, rules.RawRuleFromMap(m))
		}
	}
	return out
}

func rawBlockRules(items []any) []rules.RawBlockRule {
	out := make([]rules.RawBlockRule, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, rules.RawBlockRuleFromMap(m))
		}
	}
	return out
}

// Encode 编码规范化文档
func Encode(doc Document, format Format) ([]byte, error) {
	if doc.Rules == nil {
		doc.Rules = []rules.Rule{}
	}
	if doc.Blocklist == nil {
		doc.Blocklist = []rules.BlockRule{}
	}
	if format == FormatJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileStore 基于单个文件的规则存储
type FileStore struct {
	path   string
	format Format
	mu     sync.Mutex
}

// NewFileStore 创建文件存储，父目录不存在时自动创建
func NewFileStore(path string) (*FileStore, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	return &FileStore{path: path, format: format}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load 读取原始文档；文件不存在时返回空文档
func (s *FileStore) Load() (RawDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return RawDocument{}, nil
		}
		return RawDocument{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc, err := Parse(data, s.format)
	if err != nil {
		return RawDocument{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return doc, nil
}

// Save 原子写入：先写临时文件再重命名
func (s *FileStore) Save(doc Document) error {
	data, err := Encode(doc, s.format)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
