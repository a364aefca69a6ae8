package rules

import (
	"strings"
	"testing"
)

func TestPatternFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://myapp-pro3.cfapps.eu10.hana.ondemand.com/index.html", "*://myapp-pro3.cfapps.*/*"},
		{"https://MyApp-QA.CFAPPS.us10.hana.ondemand.com/", "*://myapp-qa.cfapps.*/*"},
		{"http://localhost:3000/a/b", "*://localhost/*"},
		{"https://intranet.example.com/", "*://intranet.example.com/*"},
		{"::not-a-url", "*://example.com/*"},
		{"just-text", "*://example.com/*"},
	}

	for _, tt := range tests {
		if got := PatternFromURL(tt.url); got != tt.want {
			t.Errorf("PatternFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestGuessMeta(t *testing.T) {
	tests := []struct {
		url   string
		label string
		sev   Severity
	}{
		{"https://myapp-pro3.cfapps.eu10.hana.ondemand.com/", "PROD", SeverityHigh},
		{"https://myapp-pro.cfapps.eu10.hana.ondemand.com/", "PROD", SeverityHigh},
		{"https://myapp-qa2.cfapps.eu10.hana.ondemand.com/", "QA", SeverityMedium},
		{"http://localhost:8080/", "LOCAL", SeverityLow},
		{"http://127.0.0.1/", "LOCAL", SeverityLow},
		{"http://10.0.0.7/", "LOCAL", SeverityLow},
		{"http://192.168.178.1/", "LOCAL", SeverityLow},
		{"http://172.20.1.1/", "LOCAL", SeverityLow},
		{"http://172.32.1.1/", "ENV", SeverityLow},
		{"https://example.org/", "ENV", SeverityLow},
		{"garbage", "ENV", SeverityLow},
	}

	for _, tt := range tests {
		meta := GuessMeta(tt.url)
		if meta.Label != tt.label || meta.Severity != tt.sev {
			t.Errorf("GuessMeta(%q) = %+v, want label %s severity %s", tt.url, meta, tt.label, tt.sev)
		}
	}
}

func TestSuggestRuleMatchesItsSource(t *testing.T) {
	urls := []string{
		"https://myapp-pro3.cfapps.eu10.hana.ondemand.com/index.html",
		"http://localhost:3000/",
		"https://intranet.example.com/wiki",
	}

	for _, u := range urls {
		r := SuggestRule(u)
		if !strings.HasPrefix(r.ID, RuleIDPrefix) {
			t.Errorf("SuggestRule(%q) id %q lacks prefix", u, r.ID)
		}
		res := Evaluate(u, []Rule{r}, nil)
		if res.Kind != Matched {
			t.Errorf("Expected suggested rule %q to match its source %q", r.Pattern, u)
		}
	}
}

func TestIsEligible(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://x/", true},
		{"HTTPS://x/", true},
		{"chrome://extensions", false},
		{"file:///tmp/a.html", false},
		{"about:blank", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsEligible(tt.url); got != tt.want {
			t.Errorf("IsEligible(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
