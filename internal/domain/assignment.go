package domain

import "time"

// Assignment marks a ticket as exclusively handled by a support agent.
// At most one assignment exists per ticket.
type Assignment struct {
	ID         string
	TicketID   string
	AgentID    string
	AssignedBy string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
