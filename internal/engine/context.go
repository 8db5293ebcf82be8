package engine

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/rcliao/tiered-memory/internal/chunker"
	"github.com/rcliao/tiered-memory/internal/model"
)

const (
	DefaultContextBudget = 4000 // tokens
	contextCandidates    = 50
	minExcerptRunes      = 100
	ellipsis             = "..."
)

// ContextItem is one entry of an assembled prompt context.
type ContextItem struct {
	Tier     model.Tier `json:"tier"`
	ID       string     `json:"id"`
	Category string     `json:"category,omitempty"`
	Content  string     `json:"content"`
	Score    float64    `json:"score,omitempty"`
	Excerpt  bool       `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Budget int           `json:"budget"`
	Used   int           `json:"used"`
	Items  []ContextItem `json:"items"`
}

// Context assembles working memory and the long-term records most relevant to
// query into a token budget, using 4 characters per token. Working items go
// first. When the next record does not fit but at least 100 characters remain,
// an excerpt of it closes the context.
func (e *Engine) Context(ctx context.Context, query string, budgetTokens int) *ContextResult {
	if budgetTokens <= 0 {
		budgetTokens = DefaultContextBudget
	}
	charBudget := budgetTokens * 4
	result := &ContextResult{Budget: budgetTokens, Items: []ContextItem{}}

	var candidates []ContextItem
	for _, it := range e.working.Context(0) {
		candidates = append(candidates, ContextItem{
			Tier:    model.TierShort,
			ID:      it.Key,
			Content: it.Value,
		})
	}
	for _, s := range e.search(ctx, query, contextCandidates, e.opts.MinScore) {
		candidates = append(candidates, ContextItem{
			Tier:     model.TierLong,
			ID:       s.Record.ID,
			Category: s.Record.Category,
			Content:  s.Record.Content,
			Score:    math.Round(s.Score*100) / 100,
		})
	}

	used := 0
	for _, c := range candidates {
		n := utf8.RuneCountInString(c.Content)
		if used+n <= charBudget {
			result.Items = append(result.Items, c)
			used += n
			continue
		}
		if remaining := charBudget - used; remaining >= minExcerptRunes {
			c.Content = chunker.Truncate(c.Content, remaining-len(ellipsis)) + ellipsis
			c.Excerpt = true
			result.Items = append(result.Items, c)
			used += remaining
		}
		break
	}

	result.Used = used / 4
	return result
}
