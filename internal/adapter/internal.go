package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurogo-live/kurogo/internal/protocol"
	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/provider/tts"
	"github.com/kurogo-live/kurogo/pkg/types"
)

// base carries the behavior shared by all adapter variants: frame
// construction, validation, and single-session emission.
type base struct {
	deps Deps
}

// TriggerExpression emits an expression-only audio frame. A positive
// durationMs schedules a best-effort reset to the neutral expression.
func (b *base) TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) Result {
	if err := validateExpression(b.deps.Model, expressionID); err != nil {
		return Failure(err)
	}

	frame := b.expressionFrame(expressionID)
	if err := b.deps.Emitter.Emit(ctx, frame); err != nil {
		return Failure(fmt.Errorf("emit expression: %w", err))
	}

	if durationMs > 0 {
		b.scheduleExpressionReset(durationMs)
	}

	fields := map[string]any{"expression_id": expressionID, "priority": priority}
	if durationMs > 0 {
		fields["duration"] = durationMs
	}
	return Success(fields)
}

// scheduleExpressionReset try-emits the neutral expression after the
// duration elapses. A full or closed outbound drops the reset silently.
func (b *base) scheduleExpressionReset(durationMs int) {
	neutral, ok := b.deps.Model.ExpressionID("neutral")
	if !ok {
		return
	}
	time.AfterFunc(time.Duration(durationMs)*time.Millisecond, func() {
		if !b.deps.Emitter.TryEmit(b.expressionFrame(neutral)) {
			slog.Debug("expression reset dropped", "expression_id", neutral)
		}
	})
}

func (b *base) expressionFrame(expressionID int) *protocol.AudioFrame {
	return &protocol.AudioFrame{
		Type:        protocol.TypeAudio,
		Audio:       nil,
		Volumes:     []float64{},
		SliceLength: tts.DefaultSliceLengthMs,
		DisplayText: protocol.DisplayText{
			Text:   fmt.Sprintf("Expression %d", expressionID),
			Name:   b.deps.Model.CharacterName,
			Avatar: b.deps.Model.Avatar,
		},
		Actions: &protocol.Actions{Expressions: []int{expressionID}},
	}
}

// TriggerMotion emits one motion-command frame.
func (b *base) TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) Result {
	if err := ValidateMotion(b.deps.Model, group, index); err != nil {
		return Failure(err)
	}

	frame := protocol.NewMotionFrame(group, index, loop, priority)
	if err := b.deps.Emitter.Emit(ctx, frame); err != nil {
		return Failure(fmt.Errorf("emit motion: %w", err))
	}

	return Success(map[string]any{
		"motion_group": group,
		"motion_index": index,
		"loop":         loop,
		"priority":     priority,
	})
}

// speak validates the request, builds the frames, and emits them on the
// session outbound: at most one audio frame, always ahead of the motions.
func (b *base) speak(ctx context.Context, req SpeakRequest) Result {
	if err := req.Validate(b.deps.Model); err != nil {
		return Failure(err)
	}

	frame, ttsGenerated, err := b.speechFrame(ctx, req)
	if err != nil {
		return Failure(err)
	}

	if err := b.deps.Emitter.Emit(ctx, frame); err != nil {
		return Failure(fmt.Errorf("emit speech: %w", err))
	}
	for _, m := range req.Motions {
		if err := b.deps.Emitter.Emit(ctx, protocol.NewMotionFrame(m.Group, m.Index, m.Loop, m.Priority)); err != nil {
			return Failure(fmt.Errorf("emit motion: %w", err))
		}
	}

	return Success(map[string]any{
		"text":          req.Text,
		"expressions":   req.Expressions,
		"tts_generated": ttsGenerated,
	})
}

// speechFrame builds the audio frame for req, synthesizing speech unless
// the request skips TTS or no provider is wired.
func (b *base) speechFrame(ctx context.Context, req SpeakRequest) (*protocol.AudioFrame, bool, error) {
	frame := &protocol.AudioFrame{
		Type:        protocol.TypeAudio,
		Volumes:     []float64{},
		SliceLength: tts.DefaultSliceLengthMs,
		DisplayText: protocol.DisplayText{
			Text:   req.Text,
			Name:   b.deps.Model.CharacterName,
			Avatar: b.deps.Model.Avatar,
		},
	}
	if len(req.Expressions) > 0 {
		frame.Actions = &protocol.Actions{Expressions: req.Expressions}
	}

	if req.Text == "" || req.SkipTTS || b.deps.TTS == nil {
		return frame, false, nil
	}

	clip, err := b.deps.TTS.Synthesize(ctx, req.Text, b.deps.Voice)
	if err != nil {
		return nil, false, fmt.Errorf("synthesize: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(clip.Audio)
	frame.Audio = &encoded
	frame.Format = clip.Format
	if clip.SliceLengthMs > 0 {
		frame.SliceLength = clip.SliceLengthMs
	}

	frame.Volumes = clip.Volumes
	if len(frame.Volumes) == 0 && clip.Format == "wav" {
		// Backends without server-side envelopes still need usable lip sync.
		volumes, verr := tts.LipSyncVolumes(clip.Audio, frame.SliceLength)
		if verr != nil {
			slog.Debug("lip-sync extraction failed", "err", verr)
		} else {
			frame.Volumes = volumes
		}
	}
	if frame.Volumes == nil {
		frame.Volumes = []float64{}
	}
	return frame, true, nil
}

// GenerateText streams agent output for the prompt on top of the persona
// prompt and prior history.
func (b *base) GenerateText(ctx context.Context, prompt string, history []types.Message) (<-chan llm.Chunk, error) {
	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.Message{Role: types.RoleUser, Content: prompt})

	ch, err := b.deps.Agent.StreamCompletion(ctx, llm.CompletionRequest{
		SystemPrompt: b.deps.SystemPrompt,
		Messages:     messages,
	})
	if err != nil {
		return nil, fmt.Errorf("adapter: stream completion: %w", err)
	}
	return ch, nil
}

// Compile-time interface assertions.
var (
	_ BackendAdapter = (*Internal)(nil)
	_ BackendAdapter = (*ExternalAPI)(nil)
)

// Internal is the default adapter: it drives a single session and runs TTS
// for speech dispatches.
type Internal struct {
	base
}

func newInternal(deps Deps) *Internal {
	return &Internal{base{deps: deps}}
}

// Mode implements BackendAdapter.
func (a *Internal) Mode() Mode { return ModeInternal }

// Speak implements BackendAdapter.
func (a *Internal) Speak(ctx context.Context, req SpeakRequest) Result {
	return a.speak(ctx, req)
}

// ExternalAPI dispatches pre-generated content pushed through the REST
// surface. The command surface is identical to Internal; callers control
// synthesis through SkipTTS.
type ExternalAPI struct {
	base
}

func newExternalAPI(deps Deps) *ExternalAPI {
	return &ExternalAPI{base{deps: deps}}
}

// Mode implements BackendAdapter.
func (a *ExternalAPI) Mode() Mode { return ModeExternalAPI }

// Speak implements BackendAdapter.
func (a *ExternalAPI) Speak(ctx context.Context, req SpeakRequest) Result {
	return a.speak(ctx, req)
}
