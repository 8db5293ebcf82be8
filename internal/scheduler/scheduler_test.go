package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidatesSpec(t *testing.T) {
	s := New(0, zerolog.Nop())
	require.NoError(t, s.Add("sweep", "*/30 * * * *", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("disabled", "", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("bad", "every night", func(context.Context) error { return nil }))
	assert.Equal(t, 1, s.Entries())
}

func TestRunSkipsOverlap(t *testing.T) {
	s := New(0, zerolog.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	job := func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}

	done := make(chan bool)
	go func() { done <- s.Run("merge", job) }()
	<-started

	assert.False(t, s.Run("merge", job))
	close(release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunAppliesTimeout(t *testing.T) {
	s := New(10*time.Millisecond, zerolog.Nop())
	var got error
	s.Run("forget", func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	assert.True(t, errors.Is(got, context.DeadlineExceeded))
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := New(0, zerolog.Nop())
	s.Start()

	started := make(chan struct{})
	go s.Run("sweep", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	// Nothing runs after Stop.
	assert.False(t, s.Run("sweep", func(context.Context) error { return nil }))
}
