package handoff

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/assistant"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
)

// Assistant produces a reply envelope for a role-tagged conversation.
type Assistant interface {
	Reply(ctx context.Context, turns []assistant.Turn) (*assistant.Envelope, error)
}

// AssignmentReader looks up the live assignment of a ticket; nil means unassigned.
type AssignmentReader interface {
	GetByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error)
}

// MessageStore reads the conversation and stores automated replies.
type MessageStore interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
	Append(ctx context.Context, msg *domain.Message, reopen bool) (domain.TicketTouch, error)
}

// OutcomeKind labels what happened to one customer message.
type OutcomeKind string

const (
	OutcomeReplied            OutcomeKind = "replied"
	OutcomeEscalated          OutcomeKind = "escalated"
	OutcomeSuppressedAssigned OutcomeKind = OutcomeKind(DecisionSuppressAssigned)
	OutcomeSuppressedUrgent   OutcomeKind = OutcomeKind(DecisionSuppressUrgent)
	OutcomeNotCustomer        OutcomeKind = "not_customer"
	OutcomeBusy               OutcomeKind = "busy"
	OutcomeNoReply            OutcomeKind = "no_reply"
	OutcomeFailed             OutcomeKind = "failed"
	OutcomeDisabled           OutcomeKind = "disabled"
)

// Outcome is returned to the caller that stored the customer message.
type Outcome struct {
	Kind OutcomeKind
	// Reply is the stored assistant message when Kind is OutcomeReplied.
	Reply *domain.Message
	// Acknowledgement is shown to the customer when Kind is OutcomeEscalated.
	Acknowledgement string
	// Failure classifies the error when Kind is OutcomeFailed.
	Failure string
}

// CoordinatorDependencies wires the coordinator.
type CoordinatorDependencies struct {
	Assistant       Assistant
	Assignments     AssignmentReader
	Messages        MessageStore
	Guard           Guard
	Publisher       *events.Publisher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Acknowledgement string
}

// Coordinator runs the reply rule for every stored customer message. It never
// returns an error: assistant and storage failures degrade to "no reply".
type Coordinator struct {
	assistant       Assistant
	assignments     AssignmentReader
	messages        MessageStore
	guard           Guard
	publisher       *events.Publisher
	metrics         *observability.Metrics
	logger          *zap.Logger
	acknowledgement string
}

// NewCoordinator builds a coordinator. A nil Assistant disables automated replies.
func NewCoordinator(deps CoordinatorDependencies) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	guard := deps.Guard
	if guard == nil {
		guard = NewLocalGuard()
	}
	ack := deps.Acknowledgement
	if strings.TrimSpace(ack) == "" {
		ack = assistant.DefaultPersona().Acknowledgement
	}
	return &Coordinator{
		assistant:       deps.Assistant,
		assignments:     deps.Assignments,
		messages:        deps.Messages,
		guard:           guard,
		publisher:       deps.Publisher,
		metrics:         deps.Metrics,
		logger:          logger.Named("handoff"),
		acknowledgement: ack,
	}
}

// Respond must be called after msg is durably stored. It decides whether the
// assistant answers and, if so, stores the answer.
func (c *Coordinator) Respond(ctx context.Context, session domain.Session, ticket *domain.Ticket, msg *domain.Message) (outcome Outcome) {
	log := c.logger.With(zap.String("ticket_id", ticket.ID), zap.String("message_id", msg.ID))
	defer func() {
		c.metrics.AssistantOutcome(string(outcome.Kind))
		log.Debug("handoff outcome", zap.String("outcome", string(outcome.Kind)))
	}()

	if msg.IsBot || msg.AuthorID == nil || !ticket.OwnedBy(*msg.AuthorID) || session.ProfileID != *msg.AuthorID {
		return Outcome{Kind: OutcomeNotCustomer}
	}

	assignment, err := c.assignments.GetByTicket(ctx, ticket.ID)
	if err != nil {
		log.Warn("assignment lookup failed", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: "storage"}
	}
	if decision := Decide(ticket, assignment); decision != DecisionReply {
		return Outcome{Kind: OutcomeKind(decision)}
	}
	if c.assistant == nil {
		return Outcome{Kind: OutcomeDisabled}
	}

	release, ok, err := c.guard.TryAcquire(ctx, ticket.ID)
	if err != nil {
		log.Warn("assistant lock unavailable", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: "lock_unavailable"}
	}
	if !ok {
		log.Info("assistant call already in flight, message left for the running call")
		return Outcome{Kind: OutcomeBusy}
	}
	defer release()

	history, err := c.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		log.Warn("conversation lookup failed", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: "storage"}
	}

	envelope, err := c.assistant.Reply(ctx, Conversation(history))
	if err != nil {
		failure := assistant.FailureClass(err)
		log.Warn("assistant call failed", zap.String("failure", failure), zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: failure}
	}

	if envelope.Escalate {
		c.publisher.Publish(ctx, events.Event{
			Type:     events.EventEscalationRequested,
			TicketID: ticket.ID,
			Actor:    events.SystemActor("assistant"),
			Payload: events.EscalationRequestedPayload{
				Reason:   envelope.Reason,
				Priority: ticket.Priority,
				Title:    ticket.Title,
			},
		})
		log.Info("assistant requested escalation", zap.String("reason", envelope.Reason))
		return Outcome{Kind: OutcomeEscalated, Acknowledgement: c.acknowledgement}
	}
	if envelope.Reply == nil {
		return Outcome{Kind: OutcomeNoReply}
	}

	// An agent may have taken the ticket while the assistant was thinking.
	assignment, err = c.assignments.GetByTicket(ctx, ticket.ID)
	if err != nil {
		log.Warn("assignment recheck failed", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: "storage"}
	}
	if assignment != nil {
		return Outcome{Kind: OutcomeSuppressedAssigned}
	}

	reply := &domain.Message{TicketID: ticket.ID, Body: *envelope.Reply, IsBot: true}
	if _, err := c.messages.Append(ctx, reply, false); err != nil {
		log.Warn("storing assistant reply failed", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Failure: "storage"}
	}
	c.metrics.MessageAppended("bot")
	c.publisher.Publish(ctx, events.Event{
		Type:     events.EventMessageAppended,
		TicketID: ticket.ID,
		Actor:    events.SystemActor("assistant"),
		Payload:  events.NewMessageAppendedPayload(reply),
	})
	return Outcome{Kind: OutcomeReplied, Reply: reply}
}

// Conversation converts stored messages, oldest first, into assistant turns.
func Conversation(messages []domain.Message) []assistant.Turn {
	turns := make([]assistant.Turn, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		turns = append(turns, assistant.Turn{Role: m.Role(), Content: m.Body})
	}
	return turns
}
