package resilience

import (
	"context"

	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis backend.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize synthesises text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (*tts.Result, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (*tts.Result, error) {
		return p.Synthesize(ctx, text, voice)
	})
}
