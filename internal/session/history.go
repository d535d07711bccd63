package session

import (
	"sync"

	"github.com/kurogo-live/kurogo/pkg/types"
)

// maxExchanges bounds conversation memory per session; one exchange is a
// user turn plus the assistant reply.
const maxExchanges = 20

// History is a session's bounded conversation memory. Safe for concurrent
// use.
type History struct {
	mu       sync.Mutex
	messages []types.Message
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append records one message, evicting the oldest exchange when the memory
// is full.
func (h *History) Append(msg types.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.messages = append(h.messages, msg)
	if len(h.messages) > maxExchanges*2 {
		h.messages = h.messages[len(h.messages)-maxExchanges*2:]
	}
}

// AppendExchange records a user turn and the assistant reply together.
func (h *History) AppendExchange(userText, assistantText string) {
	h.Append(types.Message{Role: types.RoleUser, Content: userText})
	h.Append(types.Message{Role: types.RoleAssistant, Content: assistantText})
}

// Messages returns a copy of the stored messages, oldest first.
func (h *History) Messages() []types.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
