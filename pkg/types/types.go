// Package types holds small value types shared between the kurogo core and
// its provider packages.
package types

import "time"

// Conversation roles used in [Message.Role].
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in an agent conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (e.g., a chat username).
	Name string

	// Timestamp marks when the message was produced. Zero when unknown.
	Timestamp time.Time
}
