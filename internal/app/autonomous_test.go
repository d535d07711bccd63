package app

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kurogo-live/kurogo/internal/adapter"
	"github.com/kurogo-live/kurogo/internal/config"
	"github.com/kurogo-live/kurogo/internal/observe"
	"github.com/kurogo-live/kurogo/internal/protocol"
	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
	ttsmock "github.com/kurogo-live/kurogo/pkg/provider/tts/mock"
)

// chanStream forwards frames written by a session writer to a channel.
type chanStream chan protocol.Frame

func (c chanStream) WriteFrame(_ context.Context, f protocol.Frame) error {
	c <- f
	return nil
}

// TestAutonomousSpeechReachesAutonomousSessions drives the scheduler loop end
// to end: a connected session in autonomous mode must receive the synthesized
// audio frame and the text-only autonomous-chat frame.
func TestAutonomousSpeechReachesAutonomousSessions(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Character.Name = "Kuro"
	cfg.Character.Persona = "You are Kuro, a sarcastic streamer."
	cfg.Autonomous.Enabled = true
	cfg.Autonomous.MinIntervalSeconds = 1
	cfg.Autonomous.MaxIntervalSeconds = 1

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	a, err := New(context.Background(), cfg, &Providers{
		Agent: llmmock.New("hello [joy] chat, the stream is live"),
		TTS:   ttsmock.New(),
	}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := make(chanStream, 64)
	sess := a.sessions.OnConnect(ctx, stream)
	defer a.sessions.OnDisconnect(sess.ID())
	if err := sess.SetMode(adapter.ModeAutonomous); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	go a.sched.Run(ctx)

	deadline := time.After(5 * time.Second)
	var gotAudio, gotChat bool
	for !gotAudio || !gotChat {
		select {
		case f := <-stream:
			switch fr := f.(type) {
			case *protocol.AudioFrame:
				gotAudio = true
				if fr.Audio == nil {
					t.Error("autonomous speech frame carries no audio")
				}
				if fr.DisplayText.Text != "hello chat, the stream is live" {
					t.Errorf("display text = %q, want tags stripped", fr.DisplayText.Text)
				}
			case *protocol.AutonomousChatFrame:
				gotChat = true
			}
		case <-deadline:
			t.Fatalf("timed out: audio=%v autonomous-chat=%v", gotAudio, gotChat)
		}
	}
}
