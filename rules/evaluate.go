package rules

import (
	"envbadge/cache"
	"envbadge/glob"
)

// Evaluator 按顺序对 URL 评估规则列表。
// 本身无状态，只持有一个可并发使用的模式缓存，可被多个调用方同时使用。
type Evaluator struct {
	matchers *cache.MatcherCache
}

// NewEvaluator 创建评估器，matchers 为 nil 时创建独立缓存
func NewEvaluator(matchers *cache.MatcherCache) *Evaluator {
	if matchers == nil {
		matchers = cache.NewMatcherCache()
	}
	return &Evaluator{matchers: matchers}
}

var defaultEvaluator = NewEvaluator(nil)

// Evaluate classifies url with the package-level evaluator.
func Evaluate(url string, rules []Rule, blocklist []BlockRule) MatchResult {
	return defaultEvaluator.Evaluate(url, rules, blocklist)
}

// EvaluateValue is Evaluate for untyped input; anything but a string is NoMatch.
func EvaluateValue(url any, rules []Rule, blocklist []BlockRule) MatchResult {
	return defaultEvaluator.EvaluateValue(url, rules, blocklist)
}

// Matcher 返回模式对应的（缓存的）Matcher
func (e *Evaluator) Matcher(pattern string) *glob.Matcher {
	return e.matchers.Get(pattern)
}

// Evaluate 评估流程：
//  1. 按顺序扫描规则，跳过禁用的规则
//  2. 第一条匹配的规则被选中，停止扫描（列表位置是唯一的优先级）
//  3. 没有规则匹配 -> NoMatch
//  4. 任一启用的黑名单条目匹配同一 URL -> Blocked，不再尝试后续规则
//  5. 否则 -> Matched
func (e *Evaluator) Evaluate(url string, rules []Rule, blocklist []BlockRule) MatchResult {
	idx := -1
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		if e.matchers.Get(rules[i].Pattern).Match(url) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return MatchResult{Kind: NoMatch, RuleIndex: -1}
	}

	for _, b := range blocklist {
		if !b.Enabled {
			continue
		}
		if e.matchers.Get(b.Pattern).Match(url) {
			return MatchResult{Kind: Blocked, RuleIndex: -1, BlockID: b.ID}
		}
	}

	winner := rules[idx]
	return MatchResult{
		Kind:      Matched,
		RuleID:    winner.ID,
		Label:     winner.Label,
		Color:     winner.Color,
		Severity:  winner.Severity.OrDefault(),
		RuleIndex: idx,
	}
}

// EvaluateValue 对无类型输入求值；非字符串 URL 视为 NoMatch，不会 panic
func (e *Evaluator) EvaluateValue(url any, rules []Rule, blocklist []BlockRule) MatchResult {
	s, ok := url.(string)
	if !ok {
		return MatchResult{Kind: NoMatch, RuleIndex: -1}
	}
	return e.Evaluate(s, rules, blocklist)
}
