// Package mock provides an in-memory platform.Source implementation for tests.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

// Compile-time interface assertion.
var _ platform.Source = (*Source)(nil)

// Source is a manually driven chat source: tests call Inject to deliver
// messages to the registered handler. Safe for concurrent use.
type Source struct {
	name string

	mu      sync.Mutex
	handler platform.Handler
	started bool
}

// New creates a mock Source reporting the given platform name.
func New(name string) *Source {
	if name == "" {
		name = "mock"
	}
	return &Source{name: name}
}

// Platform implements platform.Source.
func (s *Source) Platform() string { return s.name }

// Start implements platform.Source.
func (s *Source) Start(_ context.Context, h platform.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("mock: source already connected")
	}
	s.handler = h
	s.started = true
	return nil
}

// Stop implements platform.Source.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("mock: source not connected")
	}
	s.handler = nil
	s.started = false
	return nil
}

// Status implements platform.Source.
func (s *Source) Status() platform.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return platform.Status{Platform: s.name, Connected: s.started}
}

// Inject delivers a chat message as if it arrived from the platform.
// It is a no-op when the source is not started.
func (s *Source) Inject(userID, username, text string) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	h(platform.ChatMessage{
		Platform:  s.name,
		UserID:    userID,
		Username:  username,
		Text:      text,
		Timestamp: time.Now(),
	})
}
