package backlog

import (
	"strings"
)

var replacer = strings.NewReplacer(
	"`", "",
	"*", "",
	"_", "",
	".", " ",
	",", " ",
	":", " ",
	";", " ",
	"(", " ",
	")", " ",
)

// norm normalizes task text for matching only; stored text is never
// altered by it.
func norm(s string) string {
	s = strings.ToLower(s)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// tokens returns the set of space-split tokens of norm(s) with length >= 4.
func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if len(tok) >= 4 {
			set[tok] = struct{}{}
		}
	}
	return set
}

// Equivalent reports whether candidate c should be treated as the same
// task as merged task m: either their normalized forms match exactly, or
// they share enough overlapping tokens.
func Equivalent(m, c string) bool {
	normM, normC := norm(m), norm(c)
	if normM == normC {
		return true
	}

	tokM, tokC := tokens(normM), tokens(normC)
	if len(tokM) == 0 || len(tokC) == 0 {
		return false
	}

	overlap := 0
	for t := range tokM {
		if _, ok := tokC[t]; ok {
			overlap++
		}
	}
	if overlap < 6 {
		return false
	}

	minLen := len(tokM)
	if len(tokC) < minLen {
		minLen = len(tokC)
	}
	return float64(overlap) >= 0.6*float64(minLen)
}
