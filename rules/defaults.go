package rules

// 内置默认规则颜色
const (
	ColorProd  = "#dc2626"
	ColorQA    = "#facc15"
	ColorLocal = "#16a34a"
)

type defaultRule struct {
	pattern  string
	label    string
	color    string
	severity Severity
}

// 私有网段使用 172.1[6-9].* 形式（带点号），只匹配完整的第二个八位组
var builtinRules = []defaultRule{
	{"*://*-pro[0-9]*.cfapps.*/*", "PROD", ColorProd, SeverityHigh},
	{"*://*-qa[0-9]*.cfapps.*/*", "QA", ColorQA, SeverityMedium},

	{"*://localhost*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://127.0.0.1*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://192.168.*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://10.*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://172.1[6-9].*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://172.2[0-9].*/*", "LOCAL", ColorLocal, SeverityLow},
	{"*://172.3[0-1].*/*", "LOCAL", ColorLocal, SeverityLow},
}

// DefaultRules 返回内置默认规则（每次返回新的切片，调用方可自由修改）。
// 只在没有已存储规则时使用。
func DefaultRules() []Rule {
	out := make([]Rule, 0, len(builtinRules))
	for _, d := range builtinRules {
		r := Rule{
			Pattern:  d.pattern,
			Label:    d.label,
			Color:    d.color,
			Severity: d.severity,
			Enabled:  true,
		}
		r.ID = StableID(r)
		out = append(out, r)
	}
	return out
}
