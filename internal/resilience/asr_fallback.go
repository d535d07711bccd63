package resilience

import (
	"context"

	"github.com/kurogo-live/kurogo/pkg/provider/stt"
)

// ASRFallback implements [stt.Provider] with automatic failover across
// multiple recognition backends.
type ASRFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred
// backend.
func NewASRFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition backend.
func (f *ASRFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe transcribes one utterance with the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, samples, sampleRate)
	})
}
