package session

import (
	"strings"
	"unicode/utf8"

	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding"
)

// MinFactRunes is the shortest extracted line kept, exclusive.
const MinFactRunes = 5

const extractSystemPrompt = "You extract durable facts about a user from conversation transcripts."

func extractPrompt(transcript string) string {
	var b strings.Builder
	b.WriteString("Read the conversation below and extract the information worth remembering long term.\n\n")
	b.WriteString("Conversation:\n")
	b.WriteString(transcript)
	b.WriteString("\n\nOnly extract facts of these kinds:\n")
	b.WriteString("1. Identity (name, occupation, age, location)\n")
	b.WriteString("2. Things the user explicitly asked to remember\n")
	b.WriteString("3. Preferences and habits (likes, dislikes)\n")
	b.WriteString("4. Appointments, plans or commitments\n")
	b.WriteString("5. Personal background needed to understand the user\n\n")
	b.WriteString("Output rules:\n")
	b.WriteString("- One standalone fact per line, stated directly, e.g. \"the user is a software engineer\"\n")
	b.WriteString("- Output nothing if there is nothing worth keeping\n\n")
	b.WriteString("Facts:")
	return b.String()
}

// ParseFacts splits extraction output into candidate facts: one per line,
// bullets stripped, short lines dropped and duplicates removed in order.
func ParseFacts(output string) []string {
	var facts []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		line = dedup.CleanLine(strings.ReplaceAll(line, "**", ""))
		if utf8.RuneCountInString(line) <= MinFactRunes {
			continue
		}
		h := embedding.ContentHash(line)
		if seen[h] {
			continue
		}
		seen[h] = true
		facts = append(facts, line)
	}
	return facts
}
