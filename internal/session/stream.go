package session

import (
	"context"

	"github.com/kurogo-live/kurogo/internal/protocol"
)

// Stream is the transport a session writes outbound frames to. The session's
// writer goroutine is the only caller, so implementations need not be safe
// for concurrent writes.
type Stream interface {
	// WriteFrame marshals and delivers one frame to the client.
	WriteFrame(ctx context.Context, f protocol.Frame) error
}

// discardStream is the sink behind virtual sessions: REST commands aimed at
// a client_uid with no connected renderer are accepted and dropped.
type discardStream struct{}

func (discardStream) WriteFrame(context.Context, protocol.Frame) error { return nil }
