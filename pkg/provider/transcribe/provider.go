// Package transcribe defines the Provider interface for remote
// speech-to-text backends.
//
// A provider receives a local audio file path plus generation hints and
// performs exactly one API call per Transcribe invocation. Retries, backoff,
// and error classification are the caller's responsibility; the provider only
// reports what happened, attaching the HTTP status to transport failures so
// the retry layer can decide retryability.
package transcribe

import (
	"context"
	"fmt"
)

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use and must respect context
// cancellation and deadlines on every network call.
type Provider interface {
	// Transcribe uploads the audio file named in req and returns the
	// recognized speech. It performs exactly one network call; it never
	// retries internally. The caller's context carries the per-attempt
	// timeout budget.
	Transcribe(ctx context.Context, req Request) (*Result, error)

	// Health probes the provider's API reachability and credential validity.
	// Used by readiness checks; must be cheap.
	Health(ctx context.Context) error
}

// TransportError reports a failed provider HTTP exchange. The Status field is
// zero for connection-level failures (DNS, refused, timeout before response).
type TransportError struct {
	// Status is the HTTP status code, or 0 when no response was received.
	Status int

	// Message is a short human-readable description. For well-known statuses
	// it carries a canonical phrase ("invalid API key", "file too large",
	// "rate limit exceeded") that the retry layer's classifier matches on.
	Message string
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transcribe: %s", e.Message)
	}
	return fmt.Sprintf("transcribe: HTTP %d: %s", e.Status, e.Message)
}

// Retryable reports whether the failure class may succeed on a later attempt.
// Auth failures and oversized payloads are permanent.
func (e *TransportError) Retryable() bool {
	switch e.Status {
	case 401, 403, 413:
		return false
	}
	return true
}
