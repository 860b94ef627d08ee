// Package retry implements bounded retries with exponential backoff as an
// explicit state machine, keeping the policy separate from the I/O it
// guards.
package retry

import (
	"context"
	"time"
)

// State of one retry loop.
type State int

const (
	Pending State = iota
	Attempting
	Succeeded
	ExhaustedFailed
)

// Policy is the retry configuration. The zero value is not usable; use
// DefaultPolicy or fill every field.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	BackoffFactor  int
}

// DefaultPolicy matches the pipeline contract: at most 3 attempts,
// backoff 1s doubling each attempt.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		BackoffFactor:  2,
	}
}

// Backoff returns the delay before the given attempt (1-based). The
// first attempt has no delay.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.InitialBackoff
	for i := 2; i < attempt; i++ {
		d *= time.Duration(p.BackoffFactor)
	}
	return d
}

// Sleeper abstracts the backoff sleep so tests can run without waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepWithContext waits for d or until the context is done.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loop drives the Pending -> Attempting(n) -> Succeeded|ExhaustedFailed
// machine. The caller advances it attempt by attempt.
type Loop struct {
	policy  Policy
	state   State
	attempt int
	lastErr error
}

// NewLoop starts a loop in the Pending state.
func NewLoop(policy Policy) *Loop {
	return &Loop{policy: policy, state: Pending}
}

// State returns the current state.
func (l *Loop) State() State { return l.state }

// Attempt returns the number of attempts made so far.
func (l *Loop) Attempt() int { return l.attempt }

// LastErr returns the error recorded by the most recent failed attempt.
func (l *Loop) LastErr() error { return l.lastErr }

// Next reports whether another attempt may run, sleeping out the backoff
// first. It moves the machine into Attempting.
func (l *Loop) Next(ctx context.Context, sleep Sleeper) (bool, error) {
	if l.state == Succeeded || l.state == ExhaustedFailed {
		return false, nil
	}
	if l.attempt >= l.policy.MaxAttempts {
		l.state = ExhaustedFailed
		return false, nil
	}

	l.attempt++
	if err := sleep(ctx, l.policy.Backoff(l.attempt)); err != nil {
		l.state = ExhaustedFailed
		l.lastErr = err
		return false, err
	}
	l.state = Attempting
	return true, nil
}

// Success records a successful attempt.
func (l *Loop) Success() {
	l.state = Succeeded
}

// Failure records a failed attempt. When retryable is false, or the
// attempt budget is spent, the machine lands in ExhaustedFailed.
func (l *Loop) Failure(err error, retryable bool) {
	l.lastErr = err
	if !retryable || l.attempt >= l.policy.MaxAttempts {
		l.state = ExhaustedFailed
		return
	}
	l.state = Pending
}
