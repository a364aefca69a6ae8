package rules

import (
	"fmt"
	"strings"
)

// Severity 严重程度，仅影响展示强度，不影响匹配优先级
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// 规则字段的默认值
const (
	DefaultColor    = "#888888"
	DefaultSeverity = SeverityLow

	RuleIDPrefix  = "r_"
	BlockIDPrefix = "b_"
)

// Valid reports whether s is one of low, medium or high.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// OrDefault returns s, or low when s is empty.
func (s Severity) OrDefault() Severity {
	if s == "" {
		return DefaultSeverity
	}
	return s
}

// Rule 一条环境分类规则（规范化之后的形式）
type Rule struct {
	ID       string   `json:"id" yaml:"id"`
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Label    string   `json:"label" yaml:"label"`
	Color    string   `json:"color" yaml:"color"`
	Severity Severity `json:"severity" yaml:"severity"`
	Enabled  bool     `json:"enabled" yaml:"enabled"`
}

// Key 返回去重键 pattern|label|color|severity
func (r Rule) Key() string {
	return ruleKey(r.Pattern, r.Label, r.Color, string(r.Severity))
}

// Raw converts the rule back into a raw record with every field present.
func (r Rule) Raw() RawRule {
	id, pattern, label, color, sev, enabled := r.ID, r.Pattern, r.Label, r.Color, string(r.Severity), r.Enabled
	return RawRule{
		ID:       &id,
		Pattern:  &pattern,
		Label:    &label,
		Color:    &color,
		Severity: &sev,
		Enabled:  &enabled,
	}
}

// BlockRule 黑名单条目：匹配时抑制已选中的规则
type BlockRule struct {
	ID      string `json:"id" yaml:"id"`
	Pattern string `json:"pattern" yaml:"pattern"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// Raw converts the entry back into a raw record with every field present.
func (b BlockRule) Raw() RawBlockRule {
	id, pattern, enabled := b.ID, b.Pattern, b.Enabled
	return RawBlockRule{ID: &id, Pattern: &pattern, Enabled: &enabled}
}

// RawRule 来自存储或编辑界面的原始规则记录，所有字段均可缺省。
// 缺省字段在 Normalize 时填充：enabled=true, severity=low, pattern="", label="", color=#888888。
// 空 id 视为缺省。
type RawRule struct {
	ID       *string `json:"id,omitempty" yaml:"id,omitempty"`
	Pattern  *string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Label    *string `json:"label,omitempty" yaml:"label,omitempty"`
	Color    *string `json:"color,omitempty" yaml:"color,omitempty"`
	Severity *string `json:"severity,omitempty" yaml:"severity,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// RawBlockRule 原始黑名单记录
type RawBlockRule struct {
	ID      *string `json:"id,omitempty" yaml:"id,omitempty"`
	Pattern *string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enabled *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// RawRuleFromMap 从无类型的记录（JSON/YAML 解码结果）构造 RawRule。
// 类型不符的字段按缺省处理，因此损坏的记录不会导致失败。
func RawRuleFromMap(m map[string]any) RawRule {
	return RawRule{
		ID:       stringField(m, "id"),
		Pattern:  stringField(m, "pattern"),
		Label:    stringField(m, "label"),
		Color:    stringField(m, "color"),
		Severity: stringField(m, "severity"),
		Enabled:  boolField(m, "enabled"),
	}
}

// RawBlockRuleFromMap is the blocklist counterpart of RawRuleFromMap.
func RawBlockRuleFromMap(m map[string]any) RawBlockRule {
	return RawBlockRule{
		ID:      stringField(m, "id"),
		Pattern: stringField(m, "pattern"),
		Enabled: boolField(m, "enabled"),
	}
}

func stringField(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok {
		return &s
	}
	return nil
}

func boolField(m map[string]any, key string) *bool {
	if b, ok := m[key].(bool); ok {
		return &b
	}
	return nil
}

// MatchKind 分类结果类型
type MatchKind int

const (
	NoMatch MatchKind = iota
	Matched
	Blocked
)

func (k MatchKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case Blocked:
		return "blocked"
	default:
		return "no_match"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k MatchKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MatchKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "matched":
		*k = Matched
	case "blocked":
		*k = Blocked
	case "no_match", "":
		*k = NoMatch
	default:
		return fmt.Errorf("unknown match kind: %s", text)
	}
	return nil
}

// MatchResult 分类结果
// Kind 为 Matched 时规则字段有效；为 Blocked 时只有 BlockID 有效。
type MatchResult struct {
	Kind      MatchKind `json:"kind"`
	RuleID    string    `json:"rule_id,omitempty"`
	Label     string    `json:"label,omitempty"`
	Color     string    `json:"color,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	RuleIndex int       `json:"rule_index"` // 命中规则在列表中的位置，未命中为 -1
	BlockID   string    `json:"block_id,omitempty"`
}

// IsMatched reports whether the result carries a rule.
func (m MatchResult) IsMatched() bool {
	return m.Kind == Matched
}
