package summarize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuncAdapter(t *testing.T) {
	var gotSystem, gotPrompt string
	s := Func(func(ctx context.Context, system, prompt string) (string, error) {
		gotSystem, gotPrompt = system, prompt
		return "merged", nil
	})

	out, err := s.Summarize(context.Background(), "sys", "body")
	require.NoError(t, err)
	assert.Equal(t, "merged", out)
	assert.Equal(t, "sys", gotSystem)
	assert.Equal(t, "body", gotPrompt)
}

func TestWithTimeoutCancelsSlowCall(t *testing.T) {
	slow := Func(func(ctx context.Context, _, _ string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
			return "too late", nil
		}
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Summarize(context.Background(), "", "x")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWithTimeoutPassthrough(t *testing.T) {
	assert.Nil(t, WithTimeout(nil, time.Second))

	s := Func(func(ctx context.Context, _, _ string) (string, error) { return "ok", nil })
	out, err := WithTimeout(s, 0).Summarize(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestNewProviders(t *testing.T) {
	s, err := New(Options{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = New(Options{Provider: "nope"})
	assert.Error(t, err)

	s, err = New(Options{Provider: "openai", APIKey: "test", Timeout: time.Second})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = New(Options{Provider: "anthropic", APIKey: "test"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestFinish(t *testing.T) {
	_, err := finish("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	out, err := finish("  fact \n")
	require.NoError(t, err)
	assert.Equal(t, "fact", out)
}
