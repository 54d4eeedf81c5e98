// Package lifecycle holds the ticket state rules. Every function here is a pure
// decision over the current ticket, the caller's session and the requested change;
// persisting the outcome is left to the caller.
package lifecycle

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ReopenStatus is the status a closed ticket returns to when a message arrives.
const ReopenStatus = domain.TicketStatusOpen

// Transition describes a decided status change.
type Transition struct {
	From     domain.TicketStatus
	To       domain.TicketStatus
	ClosedAt *time.Time
	// Noop is set when the ticket already has the requested status.
	Noop bool
}

// ReleasesAssignment reports whether the transition ends human ownership.
func (t Transition) ReleasesAssignment() bool {
	return !t.Noop && t.To == domain.TicketStatusClosed
}

// Apply writes the transition onto the ticket, keeping closed_at in step with status.
func (t Transition) Apply(ticket *domain.Ticket) {
	if t.Noop {
		return
	}
	ticket.Status = t.To
	ticket.ClosedAt = t.ClosedAt
}

// ChangeStatus decides whether the session may move the ticket to the requested
// status. Staff may set any status. The owning customer may only close the ticket.
func ChangeStatus(session domain.Session, ticket *domain.Ticket, to domain.TicketStatus, now time.Time) (Transition, error) {
	if !to.Valid() {
		return Transition{}, apperrors.NewValidationError("unknown status", map[string]any{"status": to})
	}
	if !session.Staff() {
		if !ticket.OwnedBy(session.ProfileID) {
			return Transition{}, apperrors.NewForbidden("only the ticket owner or support may change status")
		}
		if to != domain.TicketStatusClosed {
			return Transition{}, apperrors.NewForbidden("customers may only close their tickets")
		}
	}

	transition := Transition{From: ticket.Status, To: to}
	if ticket.Status == to {
		transition.Noop = true
		transition.ClosedAt = ticket.ClosedAt
		return transition, nil
	}
	if to == domain.TicketStatusClosed {
		closedAt := now.UTC()
		transition.ClosedAt = &closedAt
	}
	return transition, nil
}

// PriorityChange describes a decided priority change.
type PriorityChange struct {
	From domain.TicketPriority
	To   domain.TicketPriority
	Noop bool
}

// ChangePriority allows support and admins only.
func ChangePriority(session domain.Session, ticket *domain.Ticket, to domain.TicketPriority) (PriorityChange, error) {
	if !to.Valid() {
		return PriorityChange{}, apperrors.NewValidationError("unknown priority", map[string]any{"priority": to})
	}
	if !session.Staff() {
		return PriorityChange{}, apperrors.NewForbidden("only support may change priority")
	}
	return PriorityChange{From: ticket.Priority, To: to, Noop: ticket.Priority == to}, nil
}

// MessageEffect is what appending a message does to the ticket.
type MessageEffect struct {
	Reopen bool
	From   domain.TicketStatus
	To     domain.TicketStatus
}

// OnMessage decides the ticket side effect of a new message given the status
// the ticket had when the message was written. Messaging a closed ticket is an
// implicit request to reopen it.
func OnMessage(status domain.TicketStatus) MessageEffect {
	if status != domain.TicketStatusClosed {
		return MessageEffect{From: status, To: status}
	}
	return MessageEffect{Reopen: true, From: status, To: ReopenStatus}
}

// CanView allows the owner and staff to read a ticket.
func CanView(session domain.Session, ticket *domain.Ticket) error {
	if session.Staff() || ticket.OwnedBy(session.ProfileID) {
		return nil
	}
	return apperrors.NewForbidden("ticket belongs to another customer")
}

// CanPost allows the owner and staff to write into the conversation.
func CanPost(session domain.Session, ticket *domain.Ticket) error {
	if session.Staff() || ticket.OwnedBy(session.ProfileID) {
		return nil
	}
	return apperrors.NewForbidden("only the ticket owner or support may post messages")
}

// CanRate allows the owner to rate a ticket once it reached a terminal status.
func CanRate(session domain.Session, ticket *domain.Ticket) error {
	if !ticket.OwnedBy(session.ProfileID) {
		return apperrors.NewForbidden("only the ticket owner may rate it")
	}
	if !ticket.Status.Terminal() {
		return apperrors.NewConflict("ticket is not finished yet", map[string]any{"status": ticket.Status})
	}
	return nil
}

// RequireStaff guards support-only operations such as take-over and transfer.
func RequireStaff(session domain.Session) error {
	if session.Staff() {
		return nil
	}
	return apperrors.NewForbidden("support role required")
}
