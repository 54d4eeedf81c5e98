package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket_created"
	EventTicketStatusChanged   EventType = "ticket_status_changed"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventMessageAppended       EventType = "message_appended"
	EventAssignmentChanged     EventType = "assignment_changed"
	EventEscalationRequested   EventType = "escalation_requested"
	EventTicketRated           EventType = "ticket_rated"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketPriorityChanged,
	EventMessageAppended,
	EventAssignmentChanged,
	EventEscalationRequested,
	EventTicketRated,
}

// Actor identifies who caused an event. ProfileID is nil for automation
// (assistant replies, the reaper).
type Actor struct {
	ProfileID *string `json:"profile_id,omitempty"`
	System    string  `json:"system,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	OwnerID     string                `json:"owner_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	ClosedAt  *time.Time          `json:"closed_at,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
}

// MessageAppendedPayload payload.
type MessageAppendedPayload struct {
	MessageID   string    `json:"message_id"`
	AuthorID    *string   `json:"author_id,omitempty"`
	IsBot       bool      `json:"is_bot"`
	BodyPreview string    `json:"body_preview"`
	CreatedAt   time.Time `json:"created_at"`
}

// AssignmentChangedPayload payload. AgentID is nil when the assignment was released.
type AssignmentChangedPayload struct {
	PreviousAgentID *string `json:"previous_agent_id,omitempty"`
	AgentID         *string `json:"agent_id,omitempty"`
	Reason          string  `json:"reason"`
}

// EscalationRequestedPayload payload.
type EscalationRequestedPayload struct {
	Reason   string                `json:"reason,omitempty"`
	Priority domain.TicketPriority `json:"priority"`
	Title    string                `json:"title"`
}

// TicketRatedPayload payload.
type TicketRatedPayload struct {
	RatingID string `json:"rating_id"`
	Rating   int    `json:"rating"`
}

// Reasons carried by status and assignment events.
const (
	ReasonManual     = "manual"
	ReasonReopened   = "reopened_by_message"
	ReasonInactivity = "inactivity"
	ReasonTakeOver   = "take_over"
	ReasonTransfer   = "transfer"
	ReasonReleased   = "released"
	ReasonClosed     = "ticket_closed"
)

// NewMessageAppendedPayload builds the payload for a stored message.
func NewMessageAppendedPayload(msg *domain.Message) MessageAppendedPayload {
	preview := msg.Body
	if runes := []rune(preview); len(runes) > 140 {
		preview = string(runes[:140])
	}
	return MessageAppendedPayload{
		MessageID:   msg.ID,
		AuthorID:    msg.AuthorID,
		IsBot:       msg.IsBot,
		BodyPreview: preview,
		CreatedAt:   msg.CreatedAt,
	}
}
