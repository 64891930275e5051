package resilience

import (
	"context"

	"github.com/talkscribe/talkscribe/pkg/provider/transcribe"
)

// TranscribeFailover implements [transcribe.Provider] with automatic failover
// across multiple speech-to-text backends.
type TranscribeFailover struct {
	group *Failover[transcribe.Provider]
}

var _ transcribe.Provider = (*TranscribeFailover)(nil)

// NewTranscribeFailover creates a [TranscribeFailover] preferring primary.
func NewTranscribeFailover(primaryName string, primary transcribe.Provider, settings Settings) *TranscribeFailover {
	return &TranscribeFailover{
		group: NewFailover(primaryName, primary, settings),
	}
}

// Add registers an additional speech-to-text backend as a spare.
func (t *TranscribeFailover) Add(name string, provider transcribe.Provider) {
	t.group.Add(name, provider)
}

// Transcribe serves the request from the first healthy backend.
func (t *TranscribeFailover) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	return TryResult(t.group, func(p transcribe.Provider) (*transcribe.Result, error) {
		return p.Transcribe(ctx, req)
	})
}

// Health passes when any backend is healthy.
func (t *TranscribeFailover) Health(ctx context.Context) error {
	return t.group.Try(func(p transcribe.Provider) error {
		return p.Health(ctx)
	})
}
