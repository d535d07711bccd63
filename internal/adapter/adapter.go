// Package adapter implements the backend adapters that translate character
// commands (expressions, motions, speech, text generation) into wire frames
// on a session's outbound stream.
//
// Three variants share one surface: the internal adapter drives a single
// session and runs TTS for speech, the external-API adapter dispatches
// pre-generated content, and the autonomous adapter fans speech out to every
// session in autonomous mode.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/protocol"
	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
	"github.com/kurogo-live/kurogo/pkg/types"
)

// Sentinel errors surfaced by adapter operations.
var (
	// ErrNotFound marks an unknown expression ID or motion group.
	ErrNotFound = errors.New("adapter: not found")

	// ErrSessionClosed marks an emit against a torn-down session.
	ErrSessionClosed = errors.New("adapter: session closed")

	// ErrBackpressure marks a direct emit that timed out on a full outbound.
	ErrBackpressure = errors.New("adapter: outbound backpressure")
)

// Mode selects the adapter variant bound to a session.
type Mode string

const (
	ModeInternal    Mode = "internal"
	ModeExternalAPI Mode = "external-api"
	ModeAutonomous  Mode = "autonomous"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeInternal, ModeExternalAPI, ModeAutonomous:
		return true
	}
	return false
}

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome of one adapter operation. It is returned to REST
// callers verbatim and reflected as an ack frame on the session outbound.
type Result struct {
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Success builds a success Result carrying the given fields.
func Success(fields map[string]any) Result {
	return Result{Status: StatusSuccess, Fields: fields}
}

// Failure builds an error Result from err.
func Failure(err error) Result {
	return Result{Status: StatusError, Error: err.Error()}
}

// MotionSpec names one motion to play.
type MotionSpec struct {
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

// SpeakRequest carries one speech dispatch: text plus optional expressions
// and motions. At least one of the three must be present; SkipTTS suppresses
// synthesis and sends a text-and-actions-only frame.
type SpeakRequest struct {
	Text        string
	Expressions []int
	Motions     []MotionSpec
	SkipTTS     bool
	Metadata    map[string]any
}

// Validate checks request invariants against the active model descriptor.
func (r *SpeakRequest) Validate(desc *model.Descriptor) error {
	var errs []error
	if r.Text == "" && len(r.Expressions) == 0 && len(r.Motions) == 0 {
		errs = append(errs, errors.New("at least one of text, expressions, or motions is required"))
	}
	if r.Text == "" && !r.SkipTTS && len(r.Expressions)+len(r.Motions) > 0 {
		// No text means nothing to synthesize; treat as skip_tts implicitly.
		r.SkipTTS = true
	}
	for _, id := range r.Expressions {
		if err := validateExpression(desc, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, m := range r.Motions {
		if err := ValidateMotion(desc, m.Group, m.Index); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateExpression(desc *model.Descriptor, id int) error {
	if id < 0 {
		return fmt.Errorf("expression ID must be non-negative, got %d: %w", id, ErrNotFound)
	}
	for _, v := range desc.EmotionMap {
		if v == id {
			return nil
		}
	}
	return fmt.Errorf("expression ID %d not in the active emotion map: %w", id, ErrNotFound)
}

// ValidateMotion checks that group exists in the descriptor and contains
// index. Callers that must acknowledge a command before dispatching it use
// this to settle the ack status up front.
func ValidateMotion(desc *model.Descriptor, group string, index int) error {
	if _, ok := desc.MotionGroups[group]; !ok {
		return fmt.Errorf("unknown motion group %q: %w", group, ErrNotFound)
	}
	if !desc.HasMotion(group, index) {
		return fmt.Errorf("motion %d not in group %q: %w", index, group, ErrNotFound)
	}
	return nil
}

// Emitter is the adapter's handle on a session outbound stream.
type Emitter interface {
	// Emit enqueues a frame, blocking briefly under backpressure. It fails
	// with ErrBackpressure on timeout or ErrSessionClosed after teardown.
	Emit(ctx context.Context, f protocol.Frame) error

	// TryEmit enqueues without blocking and reports whether the frame was
	// accepted.
	TryEmit(f protocol.Frame) bool
}

// Fanout delivers one frame to every session currently in the given mode.
// Implementations try-send and report how many sessions accepted the frame.
type Fanout interface {
	Fanout(mode Mode, f protocol.Frame) int
}

// BackendAdapter is the polymorphic command surface bound to a session.
type BackendAdapter interface {
	// Mode identifies the variant.
	Mode() Mode

	// TriggerExpression applies an expression. durationMs 0 is permanent;
	// a positive duration schedules a reset to neutral.
	TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) Result

	// TriggerMotion plays one motion from a group.
	TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) Result

	// Speak dispatches one utterance with optional actions. At most one
	// audio frame is emitted per call, always before any motion frames.
	Speak(ctx context.Context, req SpeakRequest) Result

	// GenerateText streams agent output for the prompt. history carries
	// prior conversation turns, oldest first.
	GenerateText(ctx context.Context, prompt string, history []types.Message) (<-chan llm.Chunk, error)
}

// Deps bundles the collaborators an adapter variant needs. Model must be
// non-nil; TTS may be nil when synthesis is unavailable.
type Deps struct {
	Emitter Emitter
	Fanout  Fanout
	Model   *model.Descriptor
	Agent   llm.Provider
	TTS     tts.Provider
	Voice   tts.VoiceProfile

	// SystemPrompt is the persona prompt prepended to generation requests.
	SystemPrompt string
}

// New constructs the adapter variant for mode.
func New(mode Mode, deps Deps) (BackendAdapter, error) {
	switch mode {
	case ModeInternal:
		return newInternal(deps), nil
	case ModeExternalAPI:
		return newExternalAPI(deps), nil
	case ModeAutonomous:
		return newAutonomous(deps), nil
	}
	return nil, fmt.Errorf("adapter: unknown mode %q", mode)
}
