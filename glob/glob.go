// Package glob compiles the restricted wildcard dialect used by environment
// rules into anchored, case-insensitive matchers.
//
// The dialect works over whole URL strings, not path segments:
//
//	*        zero or more of any character (crosses '/' and '.')
//	?        exactly one character
//	[...]    a bracket class, optionally followed by '*', '+' or '?'
//
// Everything else is matched literally.
package glob

import (
	"regexp"
	"strings"
)

// Matcher 编译后的模式匹配器
type Matcher struct {
	pattern string
	re      *regexp.Regexp
	err     error
}

// Translate 将模式转换为锚定的正则表达式源码（不含大小写标志）
//
// ? 对应一个 Unicode 码点（Go 正则的 . 按 rune 匹配），而不是一个 UTF-16 码元：
// BMP 之外的字符（如 emoji）按一个字符计。稳定 id 仍按 UTF-16 码元计算，两者互不影响。
func Translate(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 8)
	b.WriteByte('^')

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch c {
		case '*':
			b.WriteString(".*")
			i++
		case '?':
			b.WriteByte('.')
			i++
		case '[':
			j := strings.IndexByte(pattern[i+1:], ']')
			if j < 0 {
				// 没有闭合的 ]，按字面量处理
				b.WriteString(`\[`)
				i++
				continue
			}
			end := i + 1 + j
			cls := pattern[i : end+1]
			var q byte
			if end+1 < len(pattern) {
				q = pattern[end+1]
			}
			switch q {
			case '*', '+', '?':
				b.WriteString("(?:")
				b.WriteString(cls)
				b.WriteByte(')')
				b.WriteByte(q)
				i = end + 2
			default:
				b.WriteString(cls)
				i = end + 1
			}
		default:
			b.WriteString(regexp.QuoteMeta(pattern[i : i+1]))
			i++
		}
	}

	b.WriteByte('$')
	return b.String()
}

// Compile 编译模式。永远不会失败：无法编译的括号表达式会得到一个永不匹配的 Matcher，
// 错误可通过 Err 查看。
func Compile(pattern string) *Matcher {
	re, err := regexp.Compile("(?i)" + Translate(pattern))
	return &Matcher{
		pattern: pattern,
		re:      re,
		err:     err,
	}
}

// Match reports whether s matches the whole pattern.
func (m *Matcher) Match(s string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(s)
}

// Pattern returns the raw pattern the matcher was compiled from.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Err returns the compilation error, if any.
func (m *Matcher) Err() error {
	return m.err
}

// String returns the regular expression the pattern compiled to.
func (m *Matcher) String() string {
	if m.re == nil {
		return ""
	}
	return m.re.String()
}
