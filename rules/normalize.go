package rules

// Normalize 将原始记录转换为规范规则列表：
//  1. 合并默认值（记录自身字段优先）
//  2. 计算去重键 pattern|label|color|severity
//  3. 键已出现过则丢弃（先出现者胜出，顺序保持）
//  4. 否则使用显式 id，缺省时使用 StableID
//
// 对已规范化的列表再次调用不会产生变化。
func Normalize(raw []RawRule) []Rule {
	seen := make(map[string]struct{}, len(raw))
	out := make([]Rule, 0, len(raw))

	for _, r := range raw {
		rule := mergeDefaults(r)
		key := rule.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if r.ID != nil && *r.ID != "" {
			rule.ID = *r.ID
		} else {
			rule.ID = StableID(rule)
		}
		out = append(out, rule)
	}
	return out
}

// Canonicalize re-runs Normalize over rules that were edited in place
// (reordered, toggled, relabelled). Rules whose id was cleared get a stable id.
func Canonicalize(rules []Rule) []Rule {
	raw := make([]RawRule, len(rules))
	for i, r := range rules {
		raw[i] = r.Raw()
	}
	return Normalize(raw)
}

func mergeDefaults(r RawRule) Rule {
	rule := Rule{
		Enabled:  true,
		Severity: DefaultSeverity,
		Color:    DefaultColor,
	}
	if r.Pattern != nil {
		rule.Pattern = *r.Pattern
	}
	if r.Label != nil {
		rule.Label = *r.Label
	}
	if r.Color != nil {
		rule.Color = *r.Color
	}
	if r.Severity != nil {
		rule.Severity = Severity(*r.Severity)
	}
	if r.Enabled != nil {
		rule.Enabled = *r.Enabled
	}
	return rule
}

// NormalizeBlocklist 黑名单的规范化：默认 enabled=true, pattern=""，
// 按 pattern 去重（先出现者胜出），缺省 id 使用 StableBlockID。
func NormalizeBlocklist(raw []RawBlockRule) []BlockRule {
	seen := make(map[string]struct{}, len(raw))
	out := make([]BlockRule, 0, len(raw))

	for _, r := range raw {
		b := BlockRule{Enabled: true}
		if r.Pattern != nil {
			b.Pattern = *r.Pattern
		}
		if r.Enabled != nil {
			b.Enabled = *r.Enabled
		}
		if _, dup := seen[b.Pattern]; dup {
			continue
		}
		seen[b.Pattern] = struct{}{}

		if r.ID != nil && *r.ID != "" {
			b.ID = *r.ID
		} else {
			b.ID = StableBlockID(b.Pattern)
		}
		out = append(out, b)
	}
	return out
}

// CanonicalizeBlocklist is the blocklist counterpart of Canonicalize.
func CanonicalizeBlocklist(list []BlockRule) []BlockRule {
	raw := make([]RawBlockRule, len(list))
	for i, b := range list {
		raw[i] = b.Raw()
	}
	return NormalizeBlocklist(raw)
}
