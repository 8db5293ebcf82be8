package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// Ollama uses a local Ollama instance for embeddings.
type Ollama struct {
	client *api.Client
	model  string
	dims   int
}

// NewOllama creates an embedder using Ollama's API. Without a base URL the
// client honours OLLAMA_HOST.
// Default model: nomic-embed-text (768 dims), all-minilm (384 dims).
func NewOllama(opts Options) (*Ollama, error) {
	model := opts.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	dims := opts.Dims
	if dims == 0 {
		dims = 768
		if model == "all-minilm" {
			dims = 384
		}
	}

	client, err := ollamaClient(opts.BaseURL, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return &Ollama{client: client, model: model, dims: dims}, nil
}

func ollamaClient(baseURL string, timeout time.Duration) (*api.Client, error) {
	if baseURL == "" {
		return api.ClientFromEnvironment()
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return api.NewClient(u, &http.Client{Timeout: timeout}), nil
}

func (e *Ollama) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: Truncate(text),
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, ErrNoEmbedding
	}
	return resp.Embeddings[0], nil
}

func (e *Ollama) Dims() int { return e.dims }
