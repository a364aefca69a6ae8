package rules

import (
	"strconv"
	"unicode/utf16"
)

const (
	fnvOffset32 uint32 = 2166136261
	fnvPrime32  uint32 = 16777619
)

// Hash32 32 位 FNV-1a 变体，按 UTF-16 码元逐个异或再相乘。
// 按码元而不是字节计算，保证与已存储的旧 id 一致。
func Hash32(s string) uint32 {
	h := fnvOffset32
	for _, u := range utf16.Encode([]rune(s)) {
		h ^= uint32(u)
		h *= fnvPrime32
	}
	return h
}

func ruleKey(pattern, label, color, severity string) string {
	return pattern + "|" + label + "|" + color + "|" + severity
}

// StableID 根据规则内容计算稳定 id: r_<base36(hash32(pattern|label|color|severity))>
func StableID(r Rule) string {
	return RuleIDPrefix + strconv.FormatUint(uint64(Hash32(r.Key())), 36)
}

// StableBlockID computes b_<base36(hash32(pattern))>.
func StableBlockID(pattern string) string {
	return BlockIDPrefix + strconv.FormatUint(uint64(Hash32(pattern)), 36)
}
