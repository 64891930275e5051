// Package retry implements the bounded retry loop used around every provider
// call: exponential backoff with jitter, substring-based classification of
// non-retryable errors, and an explicit state machine instead of
// exception-style control flow.
//
// Each invocation of [Do] is independent and stateless; callers may run any
// number of retried operations concurrently.
package retry

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// State is the orchestrator's position in the retry loop.
type State int

const (
	// StateAttempting means an attempt is in flight.
	StateAttempting State = iota

	// StateRetrying means an attempt failed retryably and the loop is
	// sleeping before the next attempt.
	StateRetrying

	// StateSuccess is terminal: an attempt produced a usable value.
	StateSuccess

	// StateExhausted is terminal: the attempt budget ran out or a
	// non-retryable error short-circuited the loop.
	StateExhausted
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Policy configures a retry loop. The zero value performs a single attempt
// with no delay.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// loop performs at most MaxRetries+1 attempts.
	MaxRetries int

	// BaseDelay is the backoff base. The pre-jitter delay before retry
	// attempt n (0-based) is BaseDelay * 2^n.
	BaseDelay time.Duration

	// NonRetryable lists error-message substrings that short-circuit the
	// loop immediately, regardless of remaining budget. Matching is
	// case-insensitive.
	NonRetryable []string
}

// Delay returns the pre-jitter backoff delay for the given 0-based attempt
// index: BaseDelay * 2^attempt. Monotonically non-decreasing in attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > time.Minute {
			return time.Minute
		}
	}
	return d
}

// IsNonRetryable reports whether err matches one of the policy's
// non-retryable substrings.
func (p Policy) IsNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pat := range p.NonRetryable {
		if pat != "" && strings.Contains(msg, strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

// Outcome is the terminal result of a retry loop.
type Outcome[T any] struct {
	// Value is the successful result. Zero when State is StateExhausted.
	Value T

	// State is StateSuccess or StateExhausted.
	State State

	// Attempts reports retry accounting: on success, the 0-based index of
	// the attempt that succeeded; on exhaustion, the total number of
	// attempts performed.
	Attempts int

	// Err is the last attempt's error when State is StateExhausted.
	Err error

	// NonRetryable is true when the loop was short-circuited by a
	// non-retryable error classification.
	NonRetryable bool
}

// Do drives up to p.MaxRetries+1 attempts of op. op receives the 0-based
// attempt index so callers can vary strategy across attempts (for example
// switching from structured to legacy prompting).
//
// Between attempts Do sleeps for p.Delay(attempt) plus jitter in [0, 1s).
// The sleep is a cancellation point: when ctx is done, Do returns immediately
// with the context error. Errors never escape as panics or cross layers; the
// caller always receives a terminal Outcome.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) Outcome[T] {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Outcome[T]{State: StateExhausted, Attempts: attempt, Err: err}
		}

		v, err := op(ctx, attempt)
		if err == nil {
			return Outcome[T]{Value: v, State: StateSuccess, Attempts: attempt}
		}
		lastErr = err

		if p.IsNonRetryable(err) {
			return Outcome[T]{State: StateExhausted, Attempts: attempt + 1, Err: err, NonRetryable: true}
		}

		if attempt < p.MaxRetries {
			if err := sleep(ctx, p.Delay(attempt)+jitter()); err != nil {
				return Outcome[T]{State: StateExhausted, Attempts: attempt + 1, Err: err}
			}
		}
	}

	return Outcome[T]{State: StateExhausted, Attempts: p.MaxRetries + 1, Err: lastErr}
}

// jitter returns a random duration in [0, 1s).
func jitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
