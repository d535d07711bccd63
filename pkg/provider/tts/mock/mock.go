// Package mock provides an in-memory tts.Provider implementation for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Provider is a deterministic TTS double. Every call returns the configured
// clip and records the synthesised text. Safe for concurrent use.
type Provider struct {
	mu    sync.Mutex
	texts []string

	// Err, when non-nil, is returned by every Synthesize call.
	Err error

	// Clip is the audio returned on success. When nil a small fixed WAV
	// clip is returned.
	Clip *tts.Result
}

// New creates a mock Provider returning a short silent WAV clip.
func New() *Provider {
	return &Provider{}
}

// Failing creates a mock Provider whose calls always fail with err.
func Failing(err error) *Provider {
	if err == nil {
		err = errors.New("mock: synthesis failed")
	}
	return &Provider{Err: err}
}

// Texts returns all texts synthesised so far.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.texts))
	copy(out, p.texts)
	return out
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, _ tts.VoiceProfile) (*tts.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}
	if p.Clip != nil {
		return p.Clip, nil
	}

	// 100 ms of silence at 16 kHz mono.
	pcm := make([]byte, 16000/10*2)
	return &tts.Result{
		Audio:         tts.EncodeWAV(pcm, 16000, 1),
		Format:        "wav",
		Volumes:       []float64{0, 0, 0, 0, 0},
		SliceLengthMs: tts.DefaultSliceLengthMs,
	}, nil
}
