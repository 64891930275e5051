package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every member of a [Failover] failed or had an
// open breaker.
var ErrExhausted = errors.New("all providers exhausted")

// member pairs a provider value with its dedicated breaker.
type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Failover wraps a primary and zero or more spare instances of the same
// provider type. Members are tried in registration order; a member whose
// breaker is open is skipped. Safe for concurrent use once assembled.
type Failover[T any] struct {
	members  []member[T]
	settings Settings
}

// NewFailover creates a [Failover] with primary as the first member. The
// settings (minus Name, which is per-member) configure each member's breaker.
func NewFailover[T any](primaryName string, primary T, settings Settings) *Failover[T] {
	f := &Failover[T]{settings: settings}
	f.Add(primaryName, primary)
	return f
}

// Add appends a spare provider, tried after all earlier members.
func (f *Failover[T]) Add(name string, value T) {
	s := f.settings
	s.Name = name
	f.members = append(f.members, member[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(s),
	})
}

// Names returns the member names in trial order.
func (f *Failover[T]) Names() []string {
	out := make([]string, len(f.members))
	for i, m := range f.members {
		out[i] = m.name
	}
	return out
}

// Primary returns the first member's value.
func (f *Failover[T]) Primary() T {
	return f.members[0].value
}

// Try runs fn against each member until one succeeds. Returns [ErrExhausted]
// wrapping the last error when none does.
func (f *Failover[T]) Try(fn func(T) error) error {
	_, err := TryResult(f, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// TryResult runs fn against each member of f until one succeeds and returns
// its result. A package-level function because Go methods cannot introduce
// type parameters.
func TryResult[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range f.members {
		m := &f.members[i]
		var result R
		err := m.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(m.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping provider, breaker open", "provider", m.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", m.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
