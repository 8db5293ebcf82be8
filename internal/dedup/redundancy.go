package dedup

import "strings"

// lengthRatio is how much longer b must be than a for token containment to
// count as redundancy.
const lengthRatio = 1.2

// IsRedundant reports whether a's information is already contained in b: a is
// a substring of b, or every whitespace token of a appears in b and b is over
// 20% longer.
func IsRedundant(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(b, a) {
		return true
	}

	bTokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(b)) {
		bTokens[t] = true
	}
	for _, t := range strings.Fields(strings.ToLower(a)) {
		if !bTokens[t] {
			return false
		}
	}
	return float64(len(b)) > lengthRatio*float64(len(a))
}
