// Package chunker groups session turns into bounded batches for fact extraction.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/rcliao/tiered-memory/internal/model"
)

const (
	DefaultBatchSize = 10
	DefaultItemLimit = 400
)

// Options configures batching behavior.
type Options struct {
	BatchSize int // turns per batch
	ItemLimit int // runes kept per turn
}

// DefaultOptions returns default batching options.
func DefaultOptions() Options {
	return Options{
		BatchSize: DefaultBatchSize,
		ItemLimit: DefaultItemLimit,
	}
}

// Batch is a contiguous group of turns rendered as prompt text.
type Batch struct {
	Turns []model.Turn
	Text  string
}

// Split groups turns in order into batches of at most opts.BatchSize. Turns with
// blank content still belong to a batch but add no text.
func Split(turns []model.Turn, opts Options) []Batch {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.ItemLimit <= 0 {
		opts.ItemLimit = DefaultItemLimit
	}
	if len(turns) == 0 {
		return nil
	}

	batches := make([]Batch, 0, (len(turns)+opts.BatchSize-1)/opts.BatchSize)
	for start := 0; start < len(turns); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(turns))
		group := turns[start:end]
		batches = append(batches, Batch{Turns: group, Text: render(group, opts.ItemLimit)})
	}
	return batches
}

func render(turns []model.Turn, limit int) string {
	var b strings.Builder
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(Truncate(content, limit))
	}
	return b.String()
}

// Truncate cuts s to at most n runes without splitting a multi-byte character.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
