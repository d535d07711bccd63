package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

// Pipeline outcome labels reported to the verdict hook.
const (
	OutcomeSpam      = "spam"
	OutcomeSkipped   = "skipped"
	OutcomeNoReply   = "no_reply"
	OutcomeDispatch  = "dispatched"
	OutcomeSpeakFail = "speak_failed"
	OutcomeDisabled  = "disabled"
)

// SpeakFunc dispatches one selected response to the presenter session and
// the autonomous overlay clients.
type SpeakFunc func(ctx context.Context, text string) error

// Pipeline binds the chat ingest stages: spam filter, quality scorer, and
// response selector, ending in a speak dispatch. Any stage failure drops the
// message; nothing is partially emitted.
type Pipeline struct {
	spam      *SpamFilter
	quality   *QualityScorer
	selector  *Selector
	character string
	speak     SpeakFunc

	// enabled gates auto-responses; disabled messages are dropped before any
	// stage runs. On by default.
	enabled atomic.Bool

	// onVerdict, when set, receives one outcome label per processed message.
	onVerdict func(platform, outcome string)
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithVerdictHook installs a callback invoked with the platform name and
// outcome of every processed message. Used for metrics.
func WithVerdictHook(hook func(platform, outcome string)) PipelineOption {
	return func(p *Pipeline) { p.onVerdict = hook }
}

// NewPipeline assembles the ingest stages around the given selector and
// dispatch function. characterName feeds the quality scorer's mention
// feature.
func NewPipeline(spam *SpamFilter, quality *QualityScorer, selector *Selector, characterName string, speak SpeakFunc, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		spam:      spam,
		quality:   quality,
		selector:  selector,
		character: characterName,
		speak:     speak,
	}
	p.enabled.Store(true)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Enabled reports whether auto-responses are active.
func (p *Pipeline) Enabled() bool { return p.enabled.Load() }

// SetEnabled toggles auto-responses. A disabled pipeline drops every message
// without running any stage.
func (p *Pipeline) SetEnabled(enabled bool) { p.enabled.Store(enabled) }

// Handler returns a platform.Handler that processes each chat message on its
// own goroutine, so platform receive loops never block on generation.
func (p *Pipeline) Handler(ctx context.Context) platform.Handler {
	return func(msg platform.ChatMessage) {
		go p.Process(ctx, msg)
	}
}

// Process runs one chat message through the full pipeline.
func (p *Pipeline) Process(ctx context.Context, msg platform.ChatMessage) {
	if !p.Enabled() {
		p.report(msg.Platform, OutcomeDisabled)
		return
	}

	if spam, reason := p.spam.IsSpam(msg); spam {
		slog.Debug("chat message rejected as spam",
			"platform", msg.Platform, "user", msg.Username, "reason", reason)
		p.report(msg.Platform, OutcomeSpam)
		return
	}

	respond, score, reason := p.quality.ShouldRespond(msg, p.character)
	if !respond {
		slog.Debug("chat message skipped",
			"platform", msg.Platform, "user", msg.Username,
			"score", score, "reason", reason)
		p.report(msg.Platform, OutcomeSkipped)
		return
	}

	text := p.selector.SelectBest(ctx, msg)
	if text == "" {
		slog.Warn("no response candidate generated",
			"platform", msg.Platform, "user", msg.Username)
		p.report(msg.Platform, OutcomeNoReply)
		return
	}

	if err := p.speak(ctx, text); err != nil {
		slog.Warn("chat response dispatch failed",
			"platform", msg.Platform, "user", msg.Username, "err", err)
		p.report(msg.Platform, OutcomeSpeakFail)
		return
	}

	slog.Info("chat response dispatched",
		"platform", msg.Platform, "user", msg.Username, "score", score)
	p.report(msg.Platform, OutcomeDispatch)
}

func (p *Pipeline) report(platformName, outcome string) {
	if p.onVerdict != nil {
		p.onVerdict(platformName, outcome)
	}
}
