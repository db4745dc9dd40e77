package fuzzy

import (
	"math"

	"github.com/pmezard/go-difflib/difflib"
)

// PartialRatio scores how well the shorter string matches its best-aligned
// window in the longer one, on a 0-100 scale. Identical strings score 100,
// and an empty operand scores 0.
//
// Alignment windows are taken from the matching blocks of a SequenceMatcher,
// so concatenated or affixed forms still score high against their stem.
func PartialRatio(a, b string) int {
	if a == b {
		return 100
	}
	ra, rb := runes(a), runes(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	shorter, longer := ra, rb
	if len(ra) > len(rb) {
		shorter, longer = rb, ra
	}

	best := 0.0
	for _, block := range difflib.NewMatcher(shorter, longer).GetMatchingBlocks() {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}
		r := difflib.NewMatcher(shorter, longer[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return int(math.RoundToEven(100 * best))
}

// runes splits s into one-rune strings, the element type difflib compares.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
