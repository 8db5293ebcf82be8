package rank

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into letter/digit runs. Each Han
// ideograph is its own token since CJK text carries no spaces.
func Tokenize(text string) []string {
	var tokens []string
	var word []rune

	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// LexicalScore accumulates tf/(tf+1) for each distinct query token found in
// text. The result is capped at 1.
func LexicalScore(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}

	tf := make(map[string]int)
	for _, t := range Tokenize(text) {
		tf[t]++
	}

	var score float64
	for _, q := range queryTokens {
		if n := tf[q]; n > 0 {
			score += float64(n) / float64(n+1)
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

func distinct(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
