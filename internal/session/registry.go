package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/protocol"
	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/provider/stt"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// DefaultClientUID is the session id REST commands resolve to when the
// caller names no client.
const DefaultClientUID = "default"

// Compile-time assertion that the registry fans frames out for adapters.
var _ adapter.Fanout = (*Registry)(nil)

// Deps bundles the shared collaborators every session draws on.
type Deps struct {
	Model *model.Descriptor
	Agent llm.Provider
	TTS   tts.Provider
	STT   stt.Provider
	Voice tts.VoiceProfile

	// SystemPrompt is the persona prompt for generation.
	SystemPrompt string

	// ConfName labels the active character configuration in the connect
	// greeting.
	ConfName string

	// Hooks, when non-nil, observes session lifecycle and frame drops.
	Hooks *Hooks
}

// Hooks carries optional metric callbacks.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func()
	OnDrop       func(frameKind string)
}

// Registry tracks all live sessions behind a readers-writer lock.
type Registry struct {
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry(deps Deps) *Registry {
	if deps.Model == nil {
		deps.Model = model.Default()
	}
	return &Registry{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// OnConnect registers a new session for a connected stream, sends the
// connect greeting, and starts the writer goroutine. The caller owns the
// inbound side and must call OnDisconnect when the stream ends.
func (r *Registry) OnConnect(ctx context.Context, stream Stream) *Session {
	s := newSession(uuid.NewString(), r, false)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	// Greeting frames are enqueued before the writer can possibly fill the
	// queue, so TryEmit cannot fail here.
	s.TryEmit(&protocol.SetModelAndConfFrame{
		Type: protocol.TypeSetModelAndConf,
		ModelInfo: protocol.ModelInfo{
			URL:          r.deps.Model.ModelURL,
			EmotionMap:   r.deps.Model.EmotionMap,
			MotionGroups: r.deps.Model.MotionGroups,
		},
		ConfName:  r.deps.ConfName,
		ClientUID: s.id,
	})
	s.TryEmit(protocol.FullText("Connection established"))

	go s.run(ctx, stream)

	if r.deps.Hooks != nil && r.deps.Hooks.OnConnect != nil {
		r.deps.Hooks.OnConnect()
	}
	slog.Info("session connected", "session_id", s.id)
	return s
}

// OnDisconnect tears down and removes a session. Unknown ids are a no-op.
func (r *Registry) OnDisconnect(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Close()

	if r.deps.Hooks != nil && r.deps.Hooks.OnDisconnect != nil {
		r.deps.Hooks.OnDisconnect()
	}
	slog.Info("session disconnected", "session_id", id)
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrDefault returns the session for id, lazily creating a virtual
// session bound to a discard sink when no renderer with that id is
// connected. REST commands always have a target this way.
func (r *Registry) GetOrDefault(ctx context.Context, id string) *Session {
	if id == "" {
		id = DefaultClientUID
	}

	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}

	s = newSession(id, r, true)
	r.sessions[id] = s
	go s.run(ctx, discardStream{})

	slog.Debug("virtual session created", "session_id", id)
	return s
}

// Fanout implements adapter.Fanout: the live session set is snapshotted
// under the read lock, then the frame is try-sent to every session in the
// given mode. Sessions with a full outbound are skipped and counted.
func (r *Registry) Fanout(mode adapter.Mode, f protocol.Frame) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered, dropped := 0, 0
	for _, s := range targets {
		if s.Mode() != mode {
			continue
		}
		if s.TryEmit(f) {
			delivered++
		} else {
			dropped++
			if r.deps.Hooks != nil && r.deps.Hooks.OnDrop != nil {
				r.deps.Hooks.OnDrop(f.Kind())
			}
		}
	}
	if dropped > 0 {
		slog.Warn("fanout dropped frames",
			"frame", f.Kind(), "mode", string(mode), "dropped", dropped)
	}
	return delivered
}

// Broadcast try-sends a frame to every live session regardless of mode.
func (r *Registry) Broadcast(f protocol.Frame) int {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.TryEmit(f) {
			delivered++
		}
	}
	return delivered
}

// Len returns the number of live sessions, virtual ones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Presenter returns the default session, creating it if needed. The
// autonomous scheduler and chat pipeline speak through it.
func (r *Registry) Presenter(ctx context.Context) *Session {
	return r.GetOrDefault(ctx, DefaultClientUID)
}
