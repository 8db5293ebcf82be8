package dedup

import (
	"strings"
	"unicode/utf8"
)

// MaxMergedRunes bounds a merged record.
const MaxMergedRunes = 200

const mergeSystemPrompt = "You consolidate memory notes about a user into one accurate statement."

func mergePrompt(newText string, existing []string) string {
	var b strings.Builder
	b.WriteString("Merge the following memory entries into a single accurate and complete memory, removing redundant wording.\n\n")
	b.WriteString("Existing memories:\n")
	for _, e := range existing {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\nNew information:\n- ")
	b.WriteString(newText)
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("1. Remove duplicated and redundant descriptions\n")
	b.WriteString("2. Keep every key fact\n")
	b.WriteString("3. Output only the merged statement, no explanation\n")
	b.WriteString("4. Keep it under 100 words, in the language of the entries\n\n")
	b.WriteString("Merged memory:")
	return b.String()
}

// CleanLine trims whitespace and leading list bullets from model output.
func CleanLine(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-• "))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}

func longest(texts []string) string {
	best := ""
	for _, t := range texts {
		if utf8.RuneCountInString(t) > utf8.RuneCountInString(best) {
			best = t
		}
	}
	return best
}
