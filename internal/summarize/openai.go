package summarize

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI summarizes with any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewOpenAI creates an OpenAI-compatible summarizer.
func NewOpenAI(opts Options) *OpenAI {
	model := opts.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	reqOpts := []option.RequestOption{}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAI{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		maxTokens:   int64(opts.MaxTokens),
		temperature: opts.Temperature,
	}
}

func (s *OpenAI) Summarize(ctx context.Context, system, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    messages,
		MaxTokens:   openai.Int(s.maxTokens),
		Temperature: openai.Float(s.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return finish(resp.Choices[0].Message.Content)
}
