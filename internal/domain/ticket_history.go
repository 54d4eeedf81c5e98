package domain

import "time"

// TicketHistory is an immutable journal entry for a domain event on a ticket.
type TicketHistory struct {
	ID        string
	TicketID  string
	EventID   string
	EventType string
	ActorID   *string
	Payload   map[string]any
	CreatedAt time.Time
}
