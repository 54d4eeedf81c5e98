package domain

import "time"

// Message is one immutable entry in a ticket conversation.
// AuthorID is nil for automated messages (assistant replies and system announcements).
type Message struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Body      string
	IsBot     bool
	CreatedAt time.Time
}

// ConversationRole tags a message for the assistant.
type ConversationRole string

const (
	RoleAssistant ConversationRole = "assistant"
	RoleUser      ConversationRole = "user"
)

// Role maps a stored message to its conversation role: automated messages are
// the assistant's turns, everything a person wrote is a user turn.
func (m Message) Role() ConversationRole {
	if m.IsBot {
		return RoleAssistant
	}
	return RoleUser
}

// TicketTouch is the parent ticket's status before and after a message was
// stored, read under the same row lock as the write.
type TicketTouch struct {
	PreviousStatus TicketStatus
	Status         TicketStatus
}

// Reopened reports whether storing the message brought a closed ticket back.
func (t TicketTouch) Reopened() bool {
	return t.PreviousStatus == TicketStatusClosed && t.Status != TicketStatusClosed
}
