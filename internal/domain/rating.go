package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Rating is the customer's one-off score for a finished ticket.
type Rating struct {
	ID        string
	TicketID  string
	Rating    int
	Feedback  *string
	CreatedAt time.Time
}

// Survey joins a rating with the ticket context shown to admins.
type Survey struct {
	Rating
	TicketTitle    string
	TicketPriority TicketPriority
	OwnerNickname  *string
}
