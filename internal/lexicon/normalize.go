package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize canonicalizes a surface form for exact matching:
//   - converts to lowercase
//   - drops all whitespace
//   - drops the separators · 、 ， , ； ; ． .
//
// Normalize is idempotent.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || isSeparator(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSeparator(r rune) bool {
	switch r {
	case '·', '、', '，', ',', '；', ';', '．', '.':
		return true
	}
	return false
}

// runeLen is the length the fuzzy length-gap guard compares.
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
