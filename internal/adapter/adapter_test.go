package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kurogo-live/kurogo/internal/model"
	"github.com/kurogo-live/kurogo/internal/protocol"
	ttsmock "github.com/kurogo-live/kurogo/pkg/provider/tts/mock"
)

// fakeEmitter records emitted frames in order.
type fakeEmitter struct {
	mu     sync.Mutex
	frames []protocol.Frame
	err    error
}

func (e *fakeEmitter) Emit(_ context.Context, f protocol.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.frames = append(e.frames, f)
	return nil
}

func (e *fakeEmitter) TryEmit(f protocol.Frame) bool {
	return e.Emit(context.Background(), f) == nil
}

func (e *fakeEmitter) emitted() []protocol.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]protocol.Frame, len(e.frames))
	copy(out, e.frames)
	return out
}

type fakeFanout struct {
	mu       sync.Mutex
	frames   []protocol.Frame
	accepted int
}

func (f *fakeFanout) Fanout(_ Mode, frame protocol.Frame) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return f.accepted
}

func testDeps(em Emitter) Deps {
	return Deps{
		Emitter: em,
		Model:   model.Default(),
		TTS:     ttsmock.New(),
	}
}

func TestTriggerExpression(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.TriggerExpression(context.Background(), 3, 0, 1)
	if !res.OK() {
		t.Fatalf("TriggerExpression failed: %s", res.Error)
	}

	frames := em.emitted()
	if len(frames) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(frames))
	}
	audio, ok := frames[0].(*protocol.AudioFrame)
	if !ok {
		t.Fatalf("frame type %T, want *AudioFrame", frames[0])
	}
	if audio.Audio != nil {
		t.Error("expression-only frame must have null audio")
	}
	if audio.Actions == nil || len(audio.Actions.Expressions) != 1 || audio.Actions.Expressions[0] != 3 {
		t.Errorf("actions = %+v, want expressions [3]", audio.Actions)
	}
}

func TestTriggerExpressionUnknownID(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.TriggerExpression(context.Background(), 99, 0, 1)
	if res.OK() {
		t.Fatal("unknown expression ID must fail")
	}
	if len(em.emitted()) != 0 {
		t.Error("no frame may be emitted for an invalid expression")
	}

	if res = a.TriggerExpression(context.Background(), -1, 0, 1); res.OK() {
		t.Error("negative expression ID must fail")
	}
}

func TestTriggerExpressionDurationReset(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.TriggerExpression(context.Background(), 3, 10, 1)
	if !res.OK() {
		t.Fatalf("TriggerExpression failed: %s", res.Error)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(em.emitted()) == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	frames := em.emitted()
	if len(frames) != 2 {
		t.Fatalf("emitted %d frames, want expression + scheduled reset", len(frames))
	}
	reset := frames[1].(*protocol.AudioFrame)
	if len(reset.Actions.Expressions) != 1 || reset.Actions.Expressions[0] != 0 {
		t.Errorf("reset expressions = %v, want [0] (neutral)", reset.Actions.Expressions)
	}
}

func TestTriggerExpressionDurationZeroIsPermanent(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	a.TriggerExpression(context.Background(), 3, 0, 1)
	time.Sleep(50 * time.Millisecond)

	if n := len(em.emitted()); n != 1 {
		t.Errorf("emitted %d frames, want 1 (no reset for duration 0)", n)
	}
}

func TestTriggerMotion(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.TriggerMotion(context.Background(), "idle", 1, true, 2)
	if !res.OK() {
		t.Fatalf("TriggerMotion failed: %s", res.Error)
	}

	frames := em.emitted()
	if len(frames) != 1 {
		t.Fatalf("emitted %d frames, want 1", len(frames))
	}
	motion := frames[0].(*protocol.MotionFrame)
	if motion.MotionGroup != "idle" || motion.MotionIndex != 1 || !motion.Loop || motion.Priority != 2 {
		t.Errorf("motion frame = %+v", motion)
	}
}

func TestTriggerMotionUnknownGroup(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.TriggerMotion(context.Background(), "dance", 0, false, 1)
	if res.OK() {
		t.Fatal("unknown motion group must fail")
	}
	if !strings.Contains(res.Error, "dance") {
		t.Errorf("error %q does not name the group", res.Error)
	}
	if len(em.emitted()) != 0 {
		t.Error("no frame may be emitted for an unknown group")
	}
}

func TestSpeakSynthesizesAudioBeforeMotions(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	deps := testDeps(em)
	a := newInternal(deps)

	res := a.Speak(context.Background(), SpeakRequest{
		Text:        "hello chat",
		Expressions: []int{3},
		Motions:     []MotionSpec{{Group: "tap", Index: 0}, {Group: "idle", Index: 2}},
	})
	if !res.OK() {
		t.Fatalf("Speak failed: %s", res.Error)
	}
	if got := res.Fields["tts_generated"]; got != true {
		t.Errorf("tts_generated = %v, want true", got)
	}

	frames := em.emitted()
	if len(frames) != 3 {
		t.Fatalf("emitted %d frames, want audio + 2 motions", len(frames))
	}
	audio, ok := frames[0].(*protocol.AudioFrame)
	if !ok {
		t.Fatalf("first frame %T, want *AudioFrame before motions", frames[0])
	}
	if audio.Audio == nil || *audio.Audio == "" {
		t.Error("speech frame must carry synthesized audio")
	}
	if audio.DisplayText.Text != "hello chat" {
		t.Errorf("display text = %q", audio.DisplayText.Text)
	}
	for i, f := range frames[1:] {
		if _, ok := f.(*protocol.MotionFrame); !ok {
			t.Errorf("frame %d is %T, want *MotionFrame", i+1, f)
		}
	}
}

func TestSpeakSkipTTS(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	res := a.Speak(context.Background(), SpeakRequest{Text: "silent line", SkipTTS: true})
	if !res.OK() {
		t.Fatalf("Speak failed: %s", res.Error)
	}
	if got := res.Fields["tts_generated"]; got != false {
		t.Errorf("tts_generated = %v, want false", got)
	}

	audio := em.emitted()[0].(*protocol.AudioFrame)
	if audio.Audio != nil {
		t.Error("skip_tts frame must have null audio")
	}
}

func TestSpeakTTSFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	deps := testDeps(em)
	deps.TTS = ttsmock.Failing(errors.New("sidecar down"))
	a := newInternal(deps)

	res := a.Speak(context.Background(), SpeakRequest{
		Text:    "this will not be heard",
		Motions: []MotionSpec{{Group: "idle", Index: 0}},
	})
	if res.OK() {
		t.Fatal("Speak must fail when synthesis fails")
	}
	if len(em.emitted()) != 0 {
		t.Error("no partial frames may be emitted after a TTS failure")
	}
}

func TestSpeakRequiresContent(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	a := newInternal(testDeps(em))

	if res := a.Speak(context.Background(), SpeakRequest{}); res.OK() {
		t.Error("empty speak request must fail validation")
	}
}

func TestAutonomousSpeakBroadcasts(t *testing.T) {
	t.Parallel()

	fanout := &fakeFanout{accepted: 2}
	deps := testDeps(&fakeEmitter{})
	deps.Fanout = fanout
	a := newAutonomous(deps)

	res := a.Speak(context.Background(), SpeakRequest{Text: "anybody watching?", SkipTTS: true})
	if !res.OK() {
		t.Fatalf("Speak failed: %s", res.Error)
	}
	if got := res.Fields["delivered"]; got != 2 {
		t.Errorf("delivered = %v, want 2", got)
	}
	if len(fanout.frames) != 1 {
		t.Fatalf("fanned out %d frames, want 1", len(fanout.frames))
	}
	if _, ok := fanout.frames[0].(*protocol.AudioFrame); !ok {
		t.Errorf("fanout frame %T, want *AudioFrame", fanout.frames[0])
	}
}

func TestNewUnknownMode(t *testing.T) {
	t.Parallel()

	if _, err := New(Mode("bogus"), testDeps(&fakeEmitter{})); err == nil {
		t.Error("unknown mode must error")
	}
}
