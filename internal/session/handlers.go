package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/emotion"
	"github.com/kurogo-live/kurogo/internal/protocol"
	"github.com/kurogo-live/kurogo/pkg/provider/stt"
)

// HandleRaw parses one inbound client message and dispatches it. Parse and
// handler errors surface as error frames; they never tear down the stream.
func (s *Session) HandleRaw(ctx context.Context, data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.emitError(ctx, "malformed message: "+err.Error())
		return
	}
	s.Handle(ctx, msg)
}

// Handle dispatches one parsed client message. Generation-bearing commands
// run on their own goroutine so the reader stays responsive to
// interrupt-signal.
func (s *Session) Handle(ctx context.Context, msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.TypeExpressionCommand:
		s.handleExpressionCommand(ctx, msg)
	case protocol.TypeMotionCommandRequest:
		s.handleMotionCommand(ctx, msg)
	case protocol.TypeTextInput:
		go s.handleTextInput(ctx, strings.TrimSpace(msg.Text))
	case protocol.TypeTextGenerationRequest:
		go s.handleTextGeneration(ctx, msg)
	case protocol.TypeSetBackendMode:
		s.handleSetBackendMode(ctx, msg)
	case protocol.TypeGetBackendMode:
		s.emit(ctx, &protocol.BackendModeFrame{
			Type: protocol.TypeBackendModeSet,
			Mode: string(s.Mode()),
		})
	case protocol.TypeMicAudioData:
		s.appendMic(msg.Audio)
	case protocol.TypeMicAudioEnd:
		go s.handleMicAudioEnd(ctx)
	case protocol.TypeInterruptSignal:
		s.Interrupt()
	default:
		s.emitError(ctx, "unknown message type: "+msg.Type)
	}
}

func (s *Session) handleExpressionCommand(ctx context.Context, msg protocol.ClientMessage) {
	if msg.ExpressionID == nil {
		s.emitError(ctx, "expression-command requires expression_id")
		return
	}

	res := s.Adapter().TriggerExpression(ctx, *msg.ExpressionID, msg.Duration, msg.Priority)
	s.emit(ctx, &protocol.ExpressionAck{
		Type:         protocol.TypeExpressionAck,
		Status:       res.Status,
		ExpressionID: *msg.ExpressionID,
		Duration:     msg.Duration,
		Priority:     msg.Priority,
		Error:        res.Error,
	})
}

// handleMotionCommand acknowledges the command first, then dispatches the
// motion-command frame, so clients always observe the ack before the motion.
func (s *Session) handleMotionCommand(ctx context.Context, msg protocol.ClientMessage) {
	if msg.MotionGroup == "" {
		s.emitError(ctx, "motion-command requires motion_group")
		return
	}

	ack := &protocol.MotionAck{
		Type:        protocol.TypeMotionAck,
		Status:      adapter.StatusSuccess,
		MotionGroup: msg.MotionGroup,
		MotionIndex: msg.MotionIndex,
		Loop:        msg.Loop,
		Priority:    msg.Priority,
	}
	if err := adapter.ValidateMotion(s.reg.deps.Model, msg.MotionGroup, msg.MotionIndex); err != nil {
		ack.Status = adapter.StatusError
		ack.Error = err.Error()
		s.emit(ctx, ack)
		return
	}
	s.emit(ctx, ack)

	if res := s.Adapter().TriggerMotion(ctx, msg.MotionGroup, msg.MotionIndex, msg.Loop, msg.Priority); !res.OK() {
		s.emitError(ctx, "motion dispatch failed: "+res.Error)
	}
}

// handleTextInput runs one conversation turn: generate a reply, resolve its
// emotion tags, speak it, and record the exchange.
func (s *Session) handleTextInput(ctx context.Context, text string) {
	if text == "" {
		s.emitError(ctx, "text-input requires text")
		return
	}

	genCtx, done := s.beginGeneration(ctx)
	defer done()

	s.emit(ctx, protocol.NewControlFrame("conversation-chain-start"))
	defer s.emit(ctx, protocol.NewControlFrame("conversation-chain-end"))

	reply, err := s.generate(genCtx, text)
	if err != nil {
		if errors.Is(genCtx.Err(), context.Canceled) {
			slog.Debug("conversation interrupted", "session_id", s.id)
			return
		}
		slog.Warn("conversation generation failed", "session_id", s.id, "err", err)
		s.emitError(ctx, "generation failed: "+err.Error())
		return
	}

	emotionMap := s.reg.deps.Model.EmotionMap
	display := emotion.Strip(reply, emotionMap)
	expressions := emotion.Extract(reply, emotionMap)

	res := s.Adapter().Speak(genCtx, adapter.SpeakRequest{
		Text:        display,
		Expressions: expressions,
	})
	if !res.OK() {
		slog.Warn("conversation speak failed", "session_id", s.id, "err", res.Error)
		s.emitError(ctx, "speak failed: "+res.Error)
		return
	}

	s.history.AppendExchange(text, display)
	s.emit(ctx, protocol.FullText(display))
}

// handleTextGeneration streams raw agent output back to the client.
func (s *Session) handleTextGeneration(ctx context.Context, msg protocol.ClientMessage) {
	prompt := strings.TrimSpace(msg.Prompt)
	if prompt == "" {
		prompt = strings.TrimSpace(msg.Text)
	}
	if prompt == "" {
		s.emitError(ctx, "text-generation-request requires prompt")
		return
	}

	genCtx, done := s.beginGeneration(ctx)
	defer done()

	ch, err := s.Adapter().GenerateText(genCtx, prompt, s.history.Messages())
	if err != nil {
		s.emit(ctx, &protocol.TextResponseFrame{
			Type:  protocol.TypeTextResponse,
			Error: err.Error(),
		})
		return
	}

	var full strings.Builder
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			s.emit(ctx, &protocol.TextResponseFrame{
				Type:  protocol.TypeTextResponse,
				Error: chunk.Text,
			})
			return
		}
		if chunk.Text == "" {
			continue
		}
		full.WriteString(chunk.Text)
		s.emit(ctx, &protocol.TextChunkFrame{Type: protocol.TypeTextChunk, Text: chunk.Text})
	}

	s.emit(ctx, &protocol.TextResponseFrame{
		Type: protocol.TypeTextResponse,
		Text: full.String(),
	})
}

func (s *Session) handleSetBackendMode(ctx context.Context, msg protocol.ClientMessage) {
	mode := adapter.Mode(msg.Mode)
	if err := s.SetMode(mode); err != nil {
		s.emit(ctx, &protocol.BackendModeFrame{
			Type:   protocol.TypeBackendModeSet,
			Mode:   msg.Mode,
			Status: adapter.StatusError,
			Error:  err.Error(),
		})
		return
	}
	s.emit(ctx, &protocol.BackendModeFrame{
		Type:   protocol.TypeBackendModeSet,
		Mode:   msg.Mode,
		Status: adapter.StatusSuccess,
	})
}

// handleMicAudioEnd closes the current utterance: the buffer is swapped out
// atomically, transcribed, echoed back, and fed through the conversation
// path. Samples arriving after the swap open the next utterance.
func (s *Session) handleMicAudioEnd(ctx context.Context) {
	samples := s.takeUtterance()
	if len(samples) == 0 {
		return
	}
	if s.reg.deps.STT == nil {
		s.emitError(ctx, "no speech recognition configured")
		return
	}

	text, err := s.reg.deps.STT.Transcribe(ctx, samples, stt.DefaultSampleRate)
	if err != nil {
		slog.Warn("transcription failed", "session_id", s.id, "err", err)
		s.emitError(ctx, "transcription failed: "+err.Error())
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.emit(ctx, &protocol.TranscriptionFrame{Type: protocol.TypeTranscription, Text: text})
	s.handleTextInput(ctx, text)
}

// generate drains the chunk stream of one conversation generation into the
// full reply, surfacing intermediate state as partial-text frames. Each
// partial carries the accumulated display text so far with emotion tags
// stripped, so renderers can show the reply as it forms.
func (s *Session) generate(ctx context.Context, text string) (string, error) {
	ch, err := s.Adapter().GenerateText(ctx, text, s.history.Messages())
	if err != nil {
		return "", err
	}

	emotionMap := s.reg.deps.Model.EmotionMap
	var full strings.Builder
	for chunk := range ch {
		if chunk.FinishReason == "error" {
			return "", errors.New(chunk.Text)
		}
		if chunk.Text == "" {
			continue
		}
		full.WriteString(chunk.Text)
		s.emit(ctx, protocol.PartialText(emotion.Strip(full.String(), emotionMap)))
	}
	if full.Len() == 0 {
		return "", errors.New("empty generation")
	}
	return full.String(), nil
}

// emit enqueues a frame on the direct-reply path, logging drops.
func (s *Session) emit(ctx context.Context, f protocol.Frame) {
	if err := s.Emit(ctx, f); err != nil {
		slog.Warn("frame dropped", "session_id", s.id, "frame", f.Kind(), "err", err)
	}
}

func (s *Session) emitError(ctx context.Context, message string) {
	s.emit(ctx, protocol.NewErrorFrame(message))
}
