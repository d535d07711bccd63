// Package session implements the per-client streaming sessions and the
// registry that tracks them. A session owns the single outbound path to its
// renderer: producers enqueue frames on a bounded channel and one writer
// goroutine drains it to the stream, so delivery is strictly FIFO.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/protocol"
)

const (
	// outboundCap bounds the per-session frame queue.
	outboundCap = 64

	// emitTimeout is how long a direct-reply emit blocks on a full
	// outbound before failing with ErrBackpressure.
	emitTimeout = time.Second

	// maxMicSamples caps the mic utterance buffer (60 s at 16 kHz).
	maxMicSamples = 16000 * 60
)

// Compile-time assertion that sessions serve as adapter emitters.
var _ adapter.Emitter = (*Session)(nil)

// Session is one connected renderer client (or a virtual REST target).
type Session struct {
	id      string
	virtual bool

	outbound  chan protocol.Frame
	done      chan struct{}
	closeOnce sync.Once

	reg     *Registry
	history *History

	mu       sync.Mutex
	mode     adapter.Mode
	adapters map[adapter.Mode]adapter.BackendAdapter
	micBuf   []float32

	genMu     sync.Mutex
	genCancel context.CancelFunc
	genSeq    uint64
}

func newSession(id string, reg *Registry, virtual bool) *Session {
	return &Session{
		id:       id,
		virtual:  virtual,
		outbound: make(chan protocol.Frame, outboundCap),
		done:     make(chan struct{}),
		reg:      reg,
		history:  NewHistory(),
		mode:     adapter.ModeInternal,
		adapters: make(map[adapter.Mode]adapter.BackendAdapter),
	}
}

// ID returns the session identifier assigned on connect.
func (s *Session) ID() string { return s.id }

// Virtual reports whether the session has no real renderer attached.
func (s *Session) Virtual() bool { return s.virtual }

// History returns the session's conversation memory.
func (s *Session) History() *History { return s.history }

// Mode returns the session's current backend mode.
func (s *Session) Mode() adapter.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the backend mode. The adapter for the new mode is created
// lazily on first use.
func (s *Session) SetMode(mode adapter.Mode) error {
	if !mode.IsValid() {
		return &ValidationError{Field: "mode", Detail: "unknown mode " + string(mode)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	return nil
}

// Adapter returns the backend adapter for the session's current mode,
// creating and caching it on first use.
func (s *Session) Adapter() adapter.BackendAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.adapters[s.mode]
	if !ok {
		a, _ = adapter.New(s.mode, adapter.Deps{
			Emitter:      s,
			Fanout:       s.reg,
			Model:        s.reg.deps.Model,
			Agent:        s.reg.deps.Agent,
			TTS:          s.reg.deps.TTS,
			Voice:        s.reg.deps.Voice,
			SystemPrompt: s.reg.deps.SystemPrompt,
		})
		s.adapters[s.mode] = a
	}
	return a
}

// Emit implements adapter.Emitter. It blocks up to one second when the
// outbound queue is full.
func (s *Session) Emit(ctx context.Context, f protocol.Frame) error {
	select {
	case <-s.done:
		return adapter.ErrSessionClosed
	default:
	}

	timer := time.NewTimer(emitTimeout)
	defer timer.Stop()

	select {
	case s.outbound <- f:
		return nil
	case <-s.done:
		return adapter.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return adapter.ErrBackpressure
	}
}

// TryEmit implements adapter.Emitter. It never blocks.
func (s *Session) TryEmit(f protocol.Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbound <- f:
		return true
	default:
		return false
	}
}

// Close tears the session down: producers observe ErrSessionClosed, the
// writer drains and exits, and any in-flight generation is cancelled.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Interrupt()
	})
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run drains the outbound queue to the stream until the session closes or a
// write fails. It is the session's sole stream writer.
func (s *Session) run(ctx context.Context, stream Stream) {
	for {
		select {
		case f := <-s.outbound:
			if err := stream.WriteFrame(ctx, f); err != nil {
				slog.Warn("session write failed, closing",
					"session_id", s.id, "frame", f.Kind(), "err", err)
				s.Close()
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			s.Close()
			return
		}
	}
}

// beginGeneration derives a cancelable context for one generation, replacing
// (and cancelling) any generation already in flight.
func (s *Session) beginGeneration(ctx context.Context) (context.Context, context.CancelFunc) {
	genCtx, cancel := context.WithCancel(ctx)

	s.genMu.Lock()
	if s.genCancel != nil {
		s.genCancel()
	}
	s.genCancel = cancel
	s.genSeq++
	seq := s.genSeq
	s.genMu.Unlock()

	return genCtx, func() {
		cancel()
		s.genMu.Lock()
		if s.genSeq == seq {
			s.genCancel = nil
		}
		s.genMu.Unlock()
	}
}

// Interrupt cancels the session's in-flight generation, if any.
func (s *Session) Interrupt() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.genCancel != nil {
		s.genCancel()
		s.genCancel = nil
	}
}

// appendMic buffers mic samples for the current utterance, discarding
// anything beyond the cap.
func (s *Session) appendMic(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := maxMicSamples - len(s.micBuf)
	if room <= 0 {
		return
	}
	if len(samples) > room {
		samples = samples[:room]
	}
	s.micBuf = append(s.micBuf, samples...)
}

// takeUtterance atomically swaps out the mic buffer. Samples arriving after
// the swap start the next utterance.
func (s *Session) takeUtterance() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.micBuf
	s.micBuf = nil
	return buf
}
