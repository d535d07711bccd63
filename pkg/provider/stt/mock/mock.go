// Package mock provides an in-memory stt.Provider implementation for tests.
package mock

import (
	"context"
	"sync"

	"github.com/kurogo-live/kurogo/pkg/provider/stt"
)

// Compile-time interface assertion.
var _ stt.Provider = (*Provider)(nil)

// Provider is a deterministic STT double: every call returns Text (or Err)
// and records the utterance length. Safe for concurrent use.
type Provider struct {
	// Text is returned by every Transcribe call.
	Text string

	// Err, when non-nil, is returned instead of Text.
	Err error

	mu         sync.Mutex
	utterances []int // sample counts seen
}

// New creates a mock Provider transcribing everything as text.
func New(text string) *Provider {
	return &Provider{Text: text}
}

// Utterances returns the sample count of each utterance received so far.
func (p *Provider) Utterances() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, len(p.utterances))
	copy(out, p.utterances)
	return out
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, _ int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.utterances = append(p.utterances, len(samples))
	p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	if len(samples) == 0 {
		return "", nil
	}
	return p.Text, nil
}
