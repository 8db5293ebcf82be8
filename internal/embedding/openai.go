package embedding

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI uses any OpenAI-compatible embedding API.
type OpenAI struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an embedder using an OpenAI-compatible API.
func NewOpenAI(opts Options) *OpenAI {
	model := opts.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	dims := opts.Dims
	if dims == 0 {
		dims = 1536
	}

	reqOpts := []option.RequestOption{}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(opts.Timeout))
	}

	return &OpenAI{
		client: openai.NewClient(reqOpts...),
		model:  model,
		dims:   dims,
	}
}

func (e *OpenAI) Embed(ctx context.Context, text string) (Vector, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{Truncate(text)}},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	src := resp.Data[0].Embedding
	v := make(Vector, len(src))
	for i, f := range src {
		v[i] = float32(f)
	}
	return v, nil
}

func (e *OpenAI) Dims() int { return e.dims }
