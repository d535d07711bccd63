// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service and presents a batch
// interface: one utterance in, one audio clip out. The control plane attaches
// the clip to an outbound audio frame together with a lip-sync volume
// envelope; providers that can compute the envelope server-side return it in
// [Result.Volumes], others leave it empty and the caller derives one with
// [LipSyncVolumes].
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Result is the output of one synthesis call.
type Result struct {
	// Audio is the encoded audio clip. The encoding is named by Format.
	Audio []byte

	// Format names the audio container ("wav" for all bundled providers).
	Format string

	// Volumes is the lip-sync volume envelope: one normalised [0,1] sample
	// per SliceLengthMs of audio. Empty when the backend does not compute it.
	Volumes []float64

	// SliceLengthMs is the duration covered by one Volumes sample.
	// Zero means the provider default of 20 ms.
	SliceLengthMs int
}

// VoiceProfile describes a synthesis voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the BCP-47 language code for synthesis (e.g., "en").
	Language string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple utterances may be
// synthesised in parallel (one per connected renderer client).
type Provider interface {
	// Synthesize converts text into one audio clip using the given voice.
	// Empty text returns an error rather than an empty clip.
	//
	// The call blocks until the backend responds or ctx is cancelled.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (*Result, error)
}
