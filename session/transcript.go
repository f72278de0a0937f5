package session

import (
	"time"

	"github.com/safeclick/safeclick/interpret"
)

// Role is the author of a transcript entry.
type Role string

// Transcript roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. At most one message streams at a time, and it is
// always the last assistant message.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Text       string    `json:"text"`
	Streaming  bool      `json:"streaming"`
	Failed     bool      `json:"failed,omitempty"`
	Incomplete bool      `json:"incomplete,omitempty"` // left out of the model's history
	At         time.Time `json:"at"`
}

// Sections splits a finished assistant reply into titled blocks, or returns nil when
// it should be shown as plain text.
func (m Message) Sections() []interpret.Section {
	if m.Role != RoleAssistant || m.Streaming || m.Failed {
		return nil
	}
	return interpret.SplitSections(m.Text)
}

// Transcript is an ordered copy of a session's messages.
type Transcript []Message

// Last returns the final message, or false for an empty transcript.
func (t Transcript) Last() (Message, bool) {
	if len(t) == 0 {
		return Message{}, false
	}
	return t[len(t)-1], true
}
