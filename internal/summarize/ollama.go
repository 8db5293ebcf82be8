package summarize

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama summarizes with a local Ollama chat model.
type Ollama struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOllama creates an Ollama summarizer. Without a base URL the client
// honours OLLAMA_HOST.
func NewOllama(opts Options) (*Ollama, error) {
	model := opts.Model
	if model == "" {
		model = "llama3.1"
	}

	var client *api.Client
	if opts.BaseURL == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		client = c
	} else {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse ollama url: %w", err)
		}
		client = api.NewClient(u, http.DefaultClient)
	}

	return &Ollama{
		client:      client,
		model:       model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}, nil
}

func (s *Ollama) Summarize(ctx context.Context, system, prompt string) (string, error) {
	messages := []api.Message{}
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	messages = append(messages, api.Message{Role: "user", Content: prompt})

	stream := false
	req := &api.ChatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": s.temperature,
			"num_predict": s.maxTokens,
		},
	}

	var out strings.Builder
	err := s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return finish(out.String())
}
