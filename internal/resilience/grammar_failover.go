package resilience

import (
	"context"

	"github.com/talkscribe/talkscribe/pkg/provider/llm"
)

// GrammarFailover implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend gets its own breaker; when the
// primary fails or its breaker is open, the next healthy spare serves the
// completion.
type GrammarFailover struct {
	group *Failover[llm.Provider]
}

var _ llm.Provider = (*GrammarFailover)(nil)

// NewGrammarFailover creates a [GrammarFailover] preferring primary.
func NewGrammarFailover(primaryName string, primary llm.Provider, settings Settings) *GrammarFailover {
	return &GrammarFailover{
		group: NewFailover(primaryName, primary, settings),
	}
}

// Add registers an additional model backend as a spare.
func (g *GrammarFailover) Add(name string, provider llm.Provider) {
	g.group.Add(name, provider)
}

// Complete serves the request from the first healthy backend.
func (g *GrammarFailover) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return TryResult(g.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary backend's capabilities. Capabilities are
// static metadata and do not participate in failover; callers planning
// requests around the spare's limits should query it directly.
func (g *GrammarFailover) Capabilities() llm.ModelCapabilities {
	return g.group.Primary().Capabilities()
}
