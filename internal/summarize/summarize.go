// Package summarize adapts chat-completion providers into the single-shot text
// rewriting capability used for merging and fact extraction.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty summarizer response")

// Summarizer turns an instruction prompt into text.
type Summarizer interface {
	Summarize(ctx context.Context, system, prompt string) (string, error)
}

// Func adapts a plain function into a Summarizer.
type Func func(ctx context.Context, system, prompt string) (string, error)

func (f Func) Summarize(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Options configures a provider.
type Options struct {
	Provider    string // "openai" | "anthropic" | "ollama" | "" (disabled)
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// New builds a summarizer for the configured provider, wrapped with the
// configured timeout. An empty provider returns nil.
func New(opts Options) (Summarizer, error) {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}

	var s Summarizer
	switch opts.Provider {
	case "":
		return nil, nil
	case "openai":
		s = NewOpenAI(opts)
	case "anthropic":
		s = NewAnthropic(opts)
	case "ollama":
		o, err := NewOllama(opts)
		if err != nil {
			return nil, err
		}
		s = o
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q (valid: openai, anthropic, ollama)", opts.Provider)
	}
	return WithTimeout(s, opts.Timeout), nil
}

// WithTimeout bounds every call on s. A non-positive timeout returns s as is.
func WithTimeout(s Summarizer, timeout time.Duration) Summarizer {
	if s == nil || timeout <= 0 {
		return s
	}
	return Func(func(ctx context.Context, system, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return s.Summarize(ctx, system, prompt)
	})
}

func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
