package engine

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// tokenSetRatio scores how well two strings match as bags of
// whitespace-separated words, in [0,1]. Matching is case-sensitive. Shared
// tokens are compared against each side's extra tokens, so a short query
// fully contained in a long note scores 1.
func tokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, onlyA, onlyB []string
	for tok := range ta {
		if tb[tok] {
			sect = append(sect, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range tb {
		if !ta[tok] {
			onlyB = append(onlyB, tok)
		}
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}

	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	s := strings.Join(sect, " ")
	sa := joinNonEmpty(s, strings.Join(onlyA, " "))
	sb := joinNonEmpty(s, strings.Join(onlyB, " "))

	best := ratio(sa, sb)
	if s != "" {
		best = max(best, ratio(s, sa), ratio(s, sb))
	}
	return best
}

// ratio is the normalized indel similarity: 1 - (insertions + deletions)
// / combined rune length.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(edlib.LCSEditDistance(a, b))/float64(total)
}

// tokenSet returns the distinct whitespace-separated tokens of s.
func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
