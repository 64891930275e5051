// Package resilience provides the circuit breaker and provider failover
// primitives that keep the transcription and grammar pipelines responsive
// when an upstream API degrades.
//
// [Breaker] is a three-state circuit breaker (closed, open, probing).
// [Failover] composes several instances of a provider type behind per-entry
// breakers so a failing primary is bypassed in favour of healthy spares.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker rejects calls.
var ErrOpen = errors.New("breaker open")

// Mode is the operating mode of a [Breaker].
type Mode int

const (
	// ModeClosed forwards every call.
	ModeClosed Mode = iota

	// ModeOpen rejects every call with [ErrOpen] until the cooldown elapses.
	ModeOpen

	// ModeProbing lets a limited number of calls through to test recovery.
	ModeProbing
)

func (m Mode) String() string {
	switch m {
	case ModeClosed:
		return "closed"
	case ModeOpen:
		return "open"
	case ModeProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// Settings tunes a [Breaker]. Zero fields take defaults.
type Settings struct {
	// Name labels the breaker in log output.
	Name string

	// Threshold is the consecutive-failure count that opens the breaker.
	// Default: 5.
	Threshold int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// ProbeQuota is the number of consecutive probe successes required to
	// close again. Default: 3.
	ProbeQuota int
}

// Breaker is a three-state circuit breaker. A probe failure re-opens
// immediately; ProbeQuota consecutive probe successes close the breaker.
type Breaker struct {
	name       string
	threshold  int
	cooldown   time.Duration
	probeQuota int

	mu            sync.Mutex
	mode          Mode
	failures      int
	probes        int
	probeInFlight bool
	openedAt      time.Time
}

// NewBreaker creates a closed [Breaker] from s, filling defaults.
func NewBreaker(s Settings) *Breaker {
	if s.Threshold <= 0 {
		s.Threshold = 5
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.ProbeQuota <= 0 {
		s.ProbeQuota = 3
	}
	return &Breaker{
		name:       s.Name,
		threshold:  s.Threshold,
		cooldown:   s.Cooldown,
		probeQuota: s.ProbeQuota,
	}
}

// Do runs fn unless the breaker is open. The error from fn is returned
// unchanged so callers can inspect it.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.settle(err)
	return err
}

// admit decides whether a call may proceed, handling the open-to-probing
// transition on the way.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.mode {
	case ModeOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.mode = ModeProbing
		b.probes = 0
		b.probeInFlight = false
		slog.Info("breaker probing", "name", b.name)
	case ModeProbing:
		// One probe at a time; concurrent callers are rejected until it
		// settles.
		if b.probeInFlight {
			return ErrOpen
		}
	}
	if b.mode == ModeProbing {
		b.probeInFlight = true
	}
	return nil
}

// settle records the outcome of a call admitted by admit.
func (b *Breaker) settle(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inProbe := b.mode == ModeProbing && b.probeInFlight
	if inProbe {
		b.probeInFlight = false
	}

	if err != nil {
		if inProbe {
			b.trip()
			slog.Warn("breaker re-opened after failed probe", "name", b.name)
			return
		}
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
			slog.Warn("breaker opened", "name", b.name, "failures", b.failures)
		}
		return
	}

	if inProbe {
		b.probes++
		if b.probes >= b.probeQuota {
			b.mode = ModeClosed
			b.failures = 0
			b.probes = 0
			slog.Info("breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// trip moves the breaker to open. Caller holds b.mu.
func (b *Breaker) trip() {
	b.mode = ModeOpen
	b.openedAt = time.Now()
	b.failures = b.threshold
	b.probes = 0
	b.probeInFlight = false
}

// Mode reports the current mode. An open breaker whose cooldown has elapsed
// reports ModeProbing; the transition itself happens on the next Do.
func (b *Breaker) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeOpen && time.Since(b.openedAt) >= b.cooldown {
		return ModeProbing
	}
	return b.mode
}

// Reset forces the breaker closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeClosed
	b.failures = 0
	b.probes = 0
	b.probeInFlight = false
}
