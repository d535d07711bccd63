package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/provider/stt"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	agent map[string]func(ProviderEntry) (llm.Provider, error)
	tts   map[string]func(ProviderEntry) (tts.Provider, error)
	asr   map[string]func(ProviderEntry) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		agent: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts:   make(map[string]func(ProviderEntry) (tts.Provider, error)),
		asr:   make(map[string]func(ProviderEntry) (stt.Provider, error)),
	}
}

// RegisterAgent registers an agent provider factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAgent(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterASR registers a speech recognition provider factory under name.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// CreateAgent instantiates an agent provider using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] when no factory has
// been registered for that name.
func (r *Registry) CreateAgent(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.agent[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: agent/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTTS instantiates a TTS provider using the factory registered under
// entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateASR instantiates a speech recognition provider using the factory
// registered under entry.Name.
func (r *Registry) CreateASR(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
