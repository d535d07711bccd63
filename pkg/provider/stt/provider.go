// Package stt defines the Provider interface for speech-to-text backends.
//
// The control plane buffers mic audio per client as float32 samples and
// submits each completed utterance as one batch transcription request, so the
// interface is deliberately batch-shaped: samples in, text out. Streaming
// recognisers can be wrapped by flushing on the utterance boundary.
//
// Implementations must be safe for concurrent use; utterances from multiple
// clients may be transcribed in parallel.
package stt

import "context"

// DefaultSampleRate is the sample rate clients deliver mic audio at.
const DefaultSampleRate = 16000

// Provider is the abstraction over any speech-to-text backend.
type Provider interface {
	// Transcribe converts one utterance of mono float32 samples in [-1,1]
	// at the given sample rate into text. An empty or all-silent utterance
	// returns an empty string and no error.
	//
	// The call blocks until the backend responds or ctx is cancelled.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
