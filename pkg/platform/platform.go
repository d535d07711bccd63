// Package platform defines the abstraction for external chat platforms that
// feed viewer messages into the ingest pipeline.
//
// A Source is a runtime-connectable stream of chat messages: the control
// plane constructs sources from configuration at startup but only connects
// them on demand, so an operator can bring a Twitch or Discord feed up and
// down mid-stream without restarting the process.
package platform

import (
	"context"
	"time"
)

// ChatMessage is one viewer message received from a chat platform.
// Values are immutable after construction.
type ChatMessage struct {
	// Platform identifies the source platform (e.g., "twitch", "discord").
	Platform string

	// UserID is the platform-specific stable user identifier.
	UserID string

	// Username is the display name of the sender.
	Username string

	// Text is the raw message text.
	Text string

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// Handler receives chat messages from a connected Source. Implementations
// must not block; sources deliver messages from their receive loop.
type Handler func(msg ChatMessage)

// Status describes the current connection state of a Source.
type Status struct {
	Platform  string `json:"platform"`
	Connected bool   `json:"connected"`
	// Detail carries a human-readable connection detail, e.g. the joined
	// channel or the last connection error.
	Detail string `json:"detail,omitempty"`
}

// Source is a connectable chat message stream.
//
// Implementations must be safe for concurrent use. Start and Stop may be
// called repeatedly; starting an already-connected source or stopping a
// disconnected one is an error.
type Source interface {
	// Platform returns the source's platform identifier.
	Platform() string

	// Start connects to the platform and begins delivering messages to h.
	// It returns once the connection is established; message delivery
	// continues in the background until Stop is called or ctx is cancelled.
	Start(ctx context.Context, h Handler) error

	// Stop disconnects from the platform and stops message delivery.
	Stop() error

	// Status reports the current connection state.
	Status() Status
}
