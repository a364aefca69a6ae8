package rules

import (
	"net/url"
	"regexp"
	"strings"
)

const fallbackPattern = "*://example.com/*"

var (
	cfappsHostRe = regexp.MustCompile(`(?i)^(.*)\.cfapps\.(.+)$`)
	prodHostRe   = regexp.MustCompile(`(?i)-pro\d*\.cfapps\.`)
	qaHostRe     = regexp.MustCompile(`(?i)-qa\d*\.cfapps\.`)
	localHostRe  = regexp.MustCompile(`(?i)^(localhost|127\.0\.0\.1|10\.|192\.168\.|172\.(1[6-9]|2\d|3[01])\.)`)
)

// Meta 推测出的标签、颜色与严重程度
type Meta struct {
	Label    string   `json:"label"`
	Color    string   `json:"color"`
	Severity Severity `json:"severity"`
}

func hostOf(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

// PatternFromURL 从页面地址推导规则模式：
// Cloud Foundry 地址 (<app>.cfapps.<region>) 泛化为 *://<app>.cfapps.*/*，
// 其余地址使用 *://<host>/*，无法解析时返回 *://example.com/*
func PatternFromURL(raw string) string {
	host, ok := hostOf(raw)
	if !ok {
		return fallbackPattern
	}
	if m := cfappsHostRe.FindStringSubmatch(host); m != nil {
		return "*://" + m[1] + ".cfapps.*/*"
	}
	return "*://" + host + "/*"
}

// GuessMeta 根据主机名推测环境
func GuessMeta(raw string) Meta {
	if host, ok := hostOf(raw); ok {
		switch {
		case prodHostRe.MatchString(host):
			return Meta{Label: "PROD", Color: ColorProd, Severity: SeverityHigh}
		case qaHostRe.MatchString(host):
			return Meta{Label: "QA", Color: ColorQA, Severity: SeverityMedium}
		case localHostRe.MatchString(host):
			return Meta{Label: "LOCAL", Color: ColorLocal, Severity: SeverityLow}
		}
	}
	return Meta{Label: "ENV", Color: DefaultColor, Severity: DefaultSeverity}
}

// SuggestRule derives an enabled rule with a random id from a page address.
func SuggestRule(raw string) Rule {
	meta := GuessMeta(raw)
	return Rule{
		ID:       NewRuleID(),
		Pattern:  PatternFromURL(raw),
		Label:    meta.Label,
		Color:    meta.Color,
		Severity: meta.Severity,
		Enabled:  true,
	}
}

// IsEligible 只有 http/https 页面可以显示覆盖层
func IsEligible(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}
