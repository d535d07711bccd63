package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
)

type speakRecorder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *speakRecorder) speak(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *speakRecorder) spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.texts))
	copy(out, r.texts)
	return out
}

func newTestPipeline(agent *llmmock.Provider, rec *speakRecorder, opts ...PipelineOption) *Pipeline {
	return NewPipeline(
		NewSpamFilter(),
		NewQualityScorer(),
		NewSelector(agent, "test persona"),
		"Kuro",
		rec.speak,
		opts...,
	)
}

func TestPipelineDispatchesQualityMessage(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	var outcomes []string
	p := newTestPipeline(
		llmmock.New("glad you asked, the run starts at eight tonight"),
		rec,
		WithVerdictHook(func(_, outcome string) { outcomes = append(outcomes, outcome) }),
	)

	p.Process(context.Background(), chatMsg("u1", "hey Kuro, when does the run start?"))

	spoken := rec.spoken()
	if len(spoken) != 1 {
		t.Fatalf("spoken = %v, want one dispatch", spoken)
	}
	if spoken[0] != "glad you asked, the run starts at eight tonight" {
		t.Errorf("spoken text = %q", spoken[0])
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeDispatch {
		t.Errorf("outcomes = %v, want [%s]", outcomes, OutcomeDispatch)
	}
}

func TestPipelineDropsSpam(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	agent := llmmock.New("should never be called")
	var outcomes []string
	p := newTestPipeline(agent, rec,
		WithVerdictHook(func(_, outcome string) { outcomes = append(outcomes, outcome) }))

	p.Process(context.Background(), chatMsg("u1", "visit https://spam.example.com now"))

	if got := rec.spoken(); len(got) != 0 {
		t.Errorf("spam message dispatched: %v", got)
	}
	if len(agent.Calls()) != 0 {
		t.Error("agent called for a spam message")
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeSpam {
		t.Errorf("outcomes = %v, want [%s]", outcomes, OutcomeSpam)
	}
}

func TestPipelineDropsLowQuality(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	agent := llmmock.New("should never be called")
	p := newTestPipeline(agent, rec)

	// 9 runes, no question: below the 0.3 threshold.
	p.Process(context.Background(), chatMsg("u1", "abcdbcdbc"))

	if got := rec.spoken(); len(got) != 0 {
		t.Errorf("low-quality message dispatched: %v", got)
	}
	if len(agent.Calls()) != 0 {
		t.Error("agent called for a skipped message")
	}
}

func TestPipelineDisabledDropsEverything(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{}
	agent := llmmock.New("should never be called")
	var outcomes []string
	p := newTestPipeline(agent, rec,
		WithVerdictHook(func(_, outcome string) { outcomes = append(outcomes, outcome) }))

	if !p.Enabled() {
		t.Fatal("pipeline must start enabled")
	}
	p.SetEnabled(false)

	p.Process(context.Background(), chatMsg("u1", "hey Kuro, when does the run start?"))

	if got := rec.spoken(); len(got) != 0 {
		t.Errorf("disabled pipeline dispatched: %v", got)
	}
	if len(agent.Calls()) != 0 {
		t.Error("agent called while the pipeline was disabled")
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeDisabled {
		t.Errorf("outcomes = %v, want [%s]", outcomes, OutcomeDisabled)
	}

	p.SetEnabled(true)
	p.Process(context.Background(), chatMsg("u2", "hey Kuro, when does the run start?"))
	if got := rec.spoken(); len(got) != 1 {
		t.Errorf("re-enabled pipeline spoke %d times, want 1", len(got))
	}
}

func TestPipelineSpeakFailureReported(t *testing.T) {
	t.Parallel()

	rec := &speakRecorder{err: errors.New("session gone")}
	var outcomes []string
	p := newTestPipeline(
		llmmock.New("a reply that will fail to dispatch properly"),
		rec,
		WithVerdictHook(func(_, outcome string) { outcomes = append(outcomes, outcome) }),
	)

	p.Process(context.Background(), chatMsg("u1", "are you still live right now?"))

	if len(outcomes) != 1 || outcomes[0] != OutcomeSpeakFail {
		t.Errorf("outcomes = %v, want [%s]", outcomes, OutcomeSpeakFail)
	}
}
