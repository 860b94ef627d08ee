package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestBackoffSchedule(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, time.Duration(0), p.Backoff(1))
	assert.Equal(t, 1*time.Second, p.Backoff(2))
	assert.Equal(t, 2*time.Second, p.Backoff(3))
	assert.Equal(t, 4*time.Second, p.Backoff(4))
}

func TestLoopSucceedsFirstAttempt(t *testing.T) {
	l := NewLoop(DefaultPolicy())
	assert.Equal(t, Pending, l.State())

	ok, err := l.Next(context.Background(), noSleep)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Attempting, l.State())

	l.Success()
	assert.Equal(t, Succeeded, l.State())
	assert.Equal(t, 1, l.Attempt())

	// A finished loop refuses further attempts.
	ok, err = l.Next(context.Background(), noSleep)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoopExhaustsAfterMaxAttempts(t *testing.T) {
	transient := errors.New("transient")
	l := NewLoop(DefaultPolicy())

	var delays []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	attempts := 0
	for {
		ok, err := l.Next(context.Background(), sleep)
		require.NoError(t, err)
		if !ok {
			break
		}
		attempts++
		l.Failure(transient, true)
	}

	assert.Equal(t, 3, attempts)
	assert.Equal(t, ExhaustedFailed, l.State())
	assert.Equal(t, transient, l.LastErr())
	assert.Equal(t, []time.Duration{0, 1 * time.Second, 2 * time.Second}, delays)
}

func TestLoopStopsOnNonRetryableFailure(t *testing.T) {
	fatal := errors.New("bad request")
	l := NewLoop(DefaultPolicy())

	ok, err := l.Next(context.Background(), noSleep)
	require.NoError(t, err)
	require.True(t, ok)

	l.Failure(fatal, false)
	assert.Equal(t, ExhaustedFailed, l.State())

	ok, err = l.Next(context.Background(), noSleep)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, l.Attempt())
	assert.Equal(t, fatal, l.LastErr())
}

func TestLoopAbortsWhenSleepFails(t *testing.T) {
	l := NewLoop(DefaultPolicy())

	ok, err := l.Next(context.Background(), noSleep)
	require.NoError(t, err)
	require.True(t, ok)
	l.Failure(errors.New("transient"), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err = l.Next(ctx, SleepWithContext)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ExhaustedFailed, l.State())
}
