package rules

import (
	"strings"

	"github.com/google/uuid"
)

const randomIDLength = 12

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomIDLength]
}

// NewRuleID returns a random r_ id for rules created by an authoring action.
func NewRuleID() string {
	return RuleIDPrefix + randomToken()
}

// NewBlockID returns a random b_ id for blocklist entries.
func NewBlockID() string {
	return BlockIDPrefix + randomToken()
}

// BlankRule 手动新增规则时使用的模板
func BlankRule() Rule {
	return Rule{
		ID:       NewRuleID(),
		Pattern:  "*://example.com/*",
		Label:    "ENV",
		Color:    DefaultColor,
		Severity: DefaultSeverity,
		Enabled:  true,
	}
}

// BlankBlockRule 手动新增黑名单条目时使用的模板
func BlankBlockRule() BlockRule {
	return BlockRule{
		ID:      NewBlockID(),
		Pattern: "*://example.com/*",
		Enabled: true,
	}
}

// Move 将 from 位置的元素移动到 to 位置，返回新切片，原切片不变。
// 越界时返回 false。
func Move[T any](list []T, from, to int) ([]T, bool) {
	if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
		return list, false
	}
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)

	item := list[from]
	out = append(out, item) // grow by one, then shift
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = item
	return out, true
}

// RemoveAt returns a copy of list without the element at idx.
func RemoveAt[T any](list []T, idx int) ([]T, bool) {
	if idx < 0 || idx >= len(list) {
		return list, false
	}
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:idx]...)
	out = append(out, list[idx+1:]...)
	return out, true
}

// IndexOfRule 按 id 查找规则位置，不存在时返回 -1
func IndexOfRule(list []Rule, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexOfBlock 按 id 查找黑名单条目位置
func IndexOfBlock(list []BlockRule, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
