// Package tokenize splits Paiwan text into dictionary lookup units.
package tokenize

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[\s\p{Z},，、.?？!！]+`)

// Split breaks text on whitespace and common Latin and CJK punctuation,
// dropping empty pieces. Order and duplicates are preserved.
func Split(text string) []string {
	var out []string
	for _, tok := range separators.Split(text, -1) {
		if strings.TrimSpace(tok) != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Unique returns tokens with later duplicates removed.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ContainsHan reports whether s has any CJK unified ideograph (U+4E00..U+9FFF).
func ContainsHan(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}
