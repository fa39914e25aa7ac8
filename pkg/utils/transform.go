package utils

import (
	"strings"
)

// NormalizeSymbol canonicalizes a coin symbol for identity comparisons:
// trimmed, upper-cased, with a leading "$" stripped.
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	return strings.ToUpper(s)
}

func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimRight(e, "/")
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}
