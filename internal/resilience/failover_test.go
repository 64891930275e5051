package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestFailover_PrimaryServes(t *testing.T) {
	t.Parallel()

	f := NewFailover("primary", "a", Settings{})
	f.Add("spare", "b")

	got, err := TryResult(f, func(v string) (string, error) { return v, nil })
	if err != nil {
		t.Fatalf("TryResult: %v", err)
	}
	if got != "a" {
		t.Errorf("got %q, want primary value", got)
	}
}

func TestFailover_SpareServesWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	f := NewFailover("primary", "a", Settings{})
	f.Add("spare", "b")

	got, err := TryResult(f, func(v string) (string, error) {
		if v == "a" {
			return "", errBoom
		}
		return v, nil
	})
	if err != nil {
		t.Fatalf("TryResult: %v", err)
	}
	if got != "b" {
		t.Errorf("got %q, want spare value", got)
	}
}

func TestFailover_AllFailing(t *testing.T) {
	t.Parallel()

	f := NewFailover("primary", "a", Settings{})
	f.Add("spare", "b")

	_, err := TryResult(f, func(string) (string, error) { return "", errBoom })
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("err=%v, want ErrExhausted", err)
	}
}

func TestFailover_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	f := NewFailover("primary", "a", Settings{Threshold: 1, Cooldown: time.Hour})
	f.Add("spare", "b")

	var primaryCalls int
	fn := func(v string) (string, error) {
		if v == "a" {
			primaryCalls++
			return "", errBoom
		}
		return v, nil
	}

	TryResult(f, fn) // trips the primary breaker
	got, err := TryResult(f, fn)
	if err != nil {
		t.Fatalf("TryResult: %v", err)
	}
	if got != "b" {
		t.Errorf("got %q, want spare", got)
	}
	if primaryCalls != 1 {
		t.Errorf("primary called %d times, want 1: open breaker must skip it", primaryCalls)
	}
}

func TestFailover_Names(t *testing.T) {
	t.Parallel()

	f := NewFailover("one", 1, Settings{})
	f.Add("two", 2)

	names := f.Names()
	if len(names) != 2 || names[0] != "one" || names[1] != "two" {
		t.Errorf("Names()=%v", names)
	}
}
