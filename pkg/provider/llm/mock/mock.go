// Package mock provides a scriptable llm.Provider implementation for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/kurogo-live/kurogo/pkg/provider/llm"
)

// Compile-time interface assertion.
var _ llm.Provider = (*Provider)(nil)

// Provider is a scriptable in-memory agent. Responses are returned in order;
// when the script is exhausted the last entry repeats. An empty script yields
// an error on every call.
//
// Safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []llm.CompletionRequest
}

// New creates a Provider that replies with the given responses in order.
func New(responses ...string) *Provider {
	return &Provider{responses: responses}
}

// FailWith appends an error slot to the script: the call at that position
// fails with err instead of returning text.
func (p *Provider) FailWith(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, "")
	p.errs = append(p.errs, err)
	return p
}

// Calls returns a copy of all requests received so far.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// next records the call and returns the scripted response for it.
func (p *Provider) next(req llm.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.calls)
	p.calls = append(p.calls, req)

	if len(p.responses) == 0 {
		return "", errors.New("mock: no responses scripted")
	}
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	if idx < len(p.errs) && p.errs[idx] != nil {
		return "", p.errs[idx]
	}
	return p.responses[idx], nil
}

// StreamCompletion implements llm.Provider. The scripted response is split
// into two chunks to exercise streaming consumers.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	text, err := p.next(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.Chunk, 4)
	go func() {
		defer close(ch)
		half := len(text) / 2
		for _, part := range []string{text[:half], text[half:]} {
			if part == "" {
				continue
			}
			select {
			case ch <- llm.Chunk{Text: part}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- llm.Chunk{FinishReason: "stop"}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := p.next(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: text}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		ContextWindow:     8_192,
		MaxOutputTokens:   1_024,
		SupportsStreaming: true,
	}
}
