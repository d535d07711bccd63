package adapter

import (
	"context"
	"fmt"

	"github.com/kurogo-live/kurogo/internal/protocol"
)

// Compile-time interface assertion.
var _ BackendAdapter = (*Autonomous)(nil)

// Autonomous fans speech out to every session currently in autonomous mode
// instead of targeting its own session. Expressions and motions still go to
// the owning session; only Speak broadcasts.
type Autonomous struct {
	base
}

func newAutonomous(deps Deps) *Autonomous {
	return &Autonomous{base{deps: deps}}
}

// Mode implements BackendAdapter.
func (a *Autonomous) Mode() Mode { return ModeAutonomous }

// Speak implements BackendAdapter. The frame is built once (including any
// TTS synthesis) and try-sent to every autonomous session; sessions with a
// full outbound are skipped.
func (a *Autonomous) Speak(ctx context.Context, req SpeakRequest) Result {
	if a.deps.Fanout == nil {
		return Failure(fmt.Errorf("autonomous adapter has no fanout"))
	}
	if err := req.Validate(a.deps.Model); err != nil {
		return Failure(err)
	}

	frame, ttsGenerated, err := a.speechFrame(ctx, req)
	if err != nil {
		return Failure(err)
	}

	delivered := a.deps.Fanout.Fanout(ModeAutonomous, frame)
	for _, m := range req.Motions {
		a.deps.Fanout.Fanout(ModeAutonomous, protocol.NewMotionFrame(m.Group, m.Index, m.Loop, m.Priority))
	}

	return Success(map[string]any{
		"text":          req.Text,
		"expressions":   req.Expressions,
		"tts_generated": ttsGenerated,
		"delivered":     delivered,
	})
}
