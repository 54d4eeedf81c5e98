// Package notify delivers operator notifications: a summary email to the support
// inbox and short alerts to an operator chat.
package notify

import (
	"context"
	"errors"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketSummary is what operators are told about a new ticket.
type TicketSummary struct {
	TicketID    string
	Title       string
	Description string
	Priority    domain.TicketPriority
	OwnerName   string
	OwnerEmail  string
	URL         string
}

// Escalation is an assistant request for a human operator.
type Escalation struct {
	TicketID string
	Title    string
	Priority domain.TicketPriority
	Reason   string
	URL      string
}

// Notifier sends operator notifications.
type Notifier interface {
	TicketCreated(ctx context.Context, summary TicketSummary) error
	EscalationRequested(ctx context.Context, escalation Escalation) error
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// TicketCreated implements Notifier.
func (m Multi) TicketCreated(ctx context.Context, summary TicketSummary) error {
	var errs []error
	for _, n := range m {
		if err := n.TicketCreated(ctx, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EscalationRequested implements Notifier.
func (m Multi) EscalationRequested(ctx context.Context, escalation Escalation) error {
	var errs []error
	for _, n := range m {
		if err := n.EscalationRequested(ctx, escalation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
