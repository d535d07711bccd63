// Package scheduler runs the autonomous speech loop: at random intervals it
// prompts the agent for something to say and dispatches the result to every
// session in autonomous mode.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/emotion"
	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/protocol"
)

// Policy defaults.
const (
	DefaultMinInterval = 120 * time.Second
	DefaultMaxInterval = 240 * time.Second
)

// defaultPrompts seed autonomous generation when the operator configures
// no pool.
var defaultPrompts = []string{
	"Say something interesting about yourself",
	"Share a random thought",
	"What's on your mind?",
	"Tell me something fun",
	"What would you like to talk about?",
	"Share a random observation",
	"What's happening?",
	"Say something spontaneous",
	"What are you thinking about?",
	"Share something random",
}

// Generator produces one autonomous utterance for a prompt. The ingest
// selector satisfies this with its multi-candidate pipeline.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Speaker dispatches generated speech; the autonomous adapter satisfies it.
type Speaker interface {
	Speak(ctx context.Context, req adapter.SpeakRequest) adapter.Result
}

// Broadcaster fans the text-only autonomous-chat frame out to overlay
// clients.
type Broadcaster interface {
	Fanout(mode adapter.Mode, f protocol.Frame) int
}

// Snapshot is the scheduler's current policy, as reported over REST.
type Snapshot struct {
	Enabled     bool          `json:"enabled"`
	MinInterval time.Duration `json:"min_interval"`
	MaxInterval time.Duration `json:"max_interval"`
}

// Scheduler drives autonomous speech. Policy changes apply at the next
// tick; the sleep itself is interrupted only by shutdown.
type Scheduler struct {
	generator   Generator
	speaker     Speaker
	broadcaster Broadcaster
	model       *model.Descriptor
	prompts     []string

	mu      sync.Mutex
	enabled bool
	minIvl  time.Duration
	maxIvl  time.Duration
}

// Option is a functional option for configuring a Scheduler.
type Option func(*Scheduler)

// WithPrompts replaces the built-in prompt pool.
func WithPrompts(prompts []string) Option {
	return func(s *Scheduler) {
		if len(prompts) > 0 {
			s.prompts = prompts
		}
	}
}

// WithIntervals sets the initial sleep bounds.
func WithIntervals(min, max time.Duration) Option {
	return func(s *Scheduler) {
		s.minIvl, s.maxIvl = min, max
	}
}

// WithEnabled sets the initial enabled state. Disabled by default.
func WithEnabled(enabled bool) Option {
	return func(s *Scheduler) { s.enabled = enabled }
}

// New creates a Scheduler. It starts disabled with the default intervals
// unless options say otherwise.
func New(gen Generator, speaker Speaker, broadcaster Broadcaster, desc *model.Descriptor, opts ...Option) *Scheduler {
	s := &Scheduler{
		generator:   gen,
		speaker:     speaker,
		broadcaster: broadcaster,
		model:       desc,
		prompts:     defaultPrompts,
		minIvl:      DefaultMinInterval,
		maxIvl:      DefaultMaxInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetEnabled flips the autonomous loop on or off, effective at the next
// tick.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetIntervals updates the sleep bounds. Both must be positive and min must
// not exceed max.
func (s *Scheduler) SetIntervals(min, max time.Duration) error {
	if min <= 0 {
		return errors.New("scheduler: min interval must be positive")
	}
	if min > max {
		return errors.New("scheduler: min interval must not exceed max")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minIvl, s.maxIvl = min, max
	return nil
}

// Snapshot returns the current policy.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Enabled: s.enabled, MinInterval: s.minIvl, MaxInterval: s.maxIvl}
}

// Run loops until ctx is cancelled: sleep a uniform random duration within
// the configured bounds, then fire one tick if enabled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("autonomous scheduler started")
	for {
		timer := time.NewTimer(s.nextSleep())
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("autonomous scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if !s.Snapshot().Enabled {
			continue
		}
		s.tick(ctx)
	}
}

// nextSleep draws a uniform duration from [min, max].
func (s *Scheduler) nextSleep() time.Duration {
	s.mu.Lock()
	min, max := s.minIvl, s.maxIvl
	s.mu.Unlock()

	if max <= min {
		return min
	}
	return min + rand.N(max-min)
}

// tick generates and dispatches one autonomous utterance.
func (s *Scheduler) tick(ctx context.Context) {
	prompt := s.prompts[rand.IntN(len(s.prompts))]
	slog.Debug("autonomous tick", "prompt", prompt)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		slog.Warn("autonomous generation failed", "prompt", prompt, "err", err)
		return
	}
	if text == "" {
		slog.Debug("autonomous generation produced nothing", "prompt", prompt)
		return
	}

	display := emotion.Strip(text, s.model.EmotionMap)
	expressions := emotion.Extract(text, s.model.EmotionMap)

	res := s.speaker.Speak(ctx, adapter.SpeakRequest{
		Text:        display,
		Expressions: expressions,
	})
	if !res.OK() {
		slog.Warn("autonomous speak failed", "err", res.Error)
		return
	}

	s.broadcaster.Fanout(adapter.ModeAutonomous, &protocol.AutonomousChatFrame{
		Type: protocol.TypeAutonomousChat,
		Text: display,
	})
	slog.Info("autonomous message dispatched", "length", len(display))
}
