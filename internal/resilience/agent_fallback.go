package resilience

import (
	"context"

	"github.com/kurogo-live/kurogo/pkg/provider/llm"
)

// AgentFallback implements [llm.Provider] with automatic failover across
// multiple agent backends. Each backend gets its own circuit breaker; when
// the primary fails or its breaker is open, the next healthy fallback is
// tried.
type AgentFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*AgentFallback)(nil)

// NewAgentFallback creates an [AgentFallback] with primary as the preferred
// backend.
func NewAgentFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *AgentFallback {
	return &AgentFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional agent backend.
func (f *AgentFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend.
func (f *AgentFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// StreamCompletion sends the request to the first healthy backend and
// returns its chunk channel. Only the initial connection attempt is covered
// by failover; mid-stream errors surface as error chunks to the caller.
func (f *AgentFallback) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (<-chan llm.Chunk, error) {
		return p.StreamCompletion(ctx, req)
	})
}

// Capabilities returns the primary's capabilities. Static metadata does not
// participate in failover.
func (f *AgentFallback) Capabilities() llm.Capabilities {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Capabilities()
	}
	return llm.Capabilities{}
}
