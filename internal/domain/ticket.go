package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusInProgress         TicketStatus = "in_progress"
	TicketStatusWaitingForResponse TicketStatus = "waiting_for_response"
	TicketStatusSolved             TicketStatus = "solved"
	TicketStatusClosed             TicketStatus = "closed"
)

// TicketStatuses lists every known status in lifecycle order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusWaitingForResponse,
	TicketStatusSolved,
	TicketStatusClosed,
}

// Valid reports whether the status is one of the known values.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the ticket is finished from the customer's point of view.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusSolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every known priority, lowest first.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether the priority is one of the known values.
func (p TicketPriority) Valid() bool {
	for _, known := range TicketPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// Ticket is the aggregate for support requests.
// ClosedAt is non-nil if and only if Status is closed.
type Ticket struct {
	ID             string
	UserID         string
	Title          string
	Description    string
	InitialMessage *string
	Status         TicketStatus
	Priority       TicketPriority
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

// OwnedBy reports whether the profile filed this ticket.
func (t *Ticket) OwnedBy(profileID string) bool {
	return t != nil && t.UserID == profileID
}

// TicketSummary identifies a ticket in batch results.
type TicketSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
