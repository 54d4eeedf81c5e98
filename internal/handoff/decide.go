// Package handoff decides who answers a customer message: the assistant, a human
// agent, or nobody.
package handoff

import (
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Decision is the result of the reply rule for one inbound customer message.
type Decision string

const (
	DecisionReply            Decision = "reply"
	DecisionSuppressAssigned Decision = "suppressed_assigned"
	DecisionSuppressUrgent   Decision = "suppressed_urgent"
)

// Decide applies the reply rule in order: a live assignment means a human owns
// the ticket, urgent tickets are human-only, everything else goes to the assistant.
func Decide(ticket *domain.Ticket, assignment *domain.Assignment) Decision {
	if assignment != nil {
		return DecisionSuppressAssigned
	}
	if ticket.Priority == domain.TicketPriorityUrgent {
		return DecisionSuppressUrgent
	}
	return DecisionReply
}

// TakeOverAnnouncement is the system message stored when an agent takes a ticket.
func TakeOverAnnouncement(agent string) string {
	return fmt.Sprintf("Support agent %s has taken over this ticket and will reply shortly.", agent)
}

// TransferAnnouncement is the system message stored when a ticket changes agents.
func TransferAnnouncement(agent string) string {
	return fmt.Sprintf("This ticket has been transferred to support agent %s.", agent)
}

// ReleaseAnnouncement is the system message stored when a ticket returns to automation.
func ReleaseAnnouncement() string {
	return "The support agent has released this ticket. The assistant will answer new messages."
}
