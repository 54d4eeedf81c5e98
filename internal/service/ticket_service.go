package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/handoff"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Responder runs the handoff rule for a stored customer message.
type Responder interface {
	Respond(ctx context.Context, session domain.Session, ticket *domain.Ticket, msg *domain.Message) handoff.Outcome
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.MessageRepository
	assignments repository.AssignmentRepository
	responder   Responder
	publisher   *events.Publisher
	metrics     *observability.Metrics
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.MessageRepository
	AssignmentRepo repository.AssignmentRepository
	Responder      Responder
	Publisher      *events.Publisher
	Metrics        *observability.Metrics
	Now            func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title          string
	Description    string
	Priority       domain.TicketPriority
	InitialMessage *string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// TicketCreated is the result of filing a ticket.
type TicketCreated struct {
	Ticket    *domain.Ticket
	Message   *domain.Message
	Assistant *handoff.Outcome
}

// TicketDetail is a ticket with its conversation.
type TicketDetail struct {
	Ticket     *domain.Ticket
	Messages   []domain.Message
	Assignment *domain.Assignment
}

// MessagePosted is the result of appending a message.
type MessagePosted struct {
	Ticket    *domain.Ticket
	Message   *domain.Message
	Assistant *handoff.Outcome
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		assignments: deps.AssignmentRepo,
		responder:   deps.Responder,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		now:         now,
	}
}

// CreateTicket files a ticket for the caller. An initial message becomes the
// first conversation entry and goes through the handoff rule.
func (s *TicketService) CreateTicket(ctx context.Context, session domain.Session, input TicketCreateInput) (*TicketCreated, error) {
	ticket := &domain.Ticket{
		UserID:      session.ProfileID,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    input.Priority,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !ticket.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": ticket.Priority})
	}

	var initial *domain.Message
	if input.InitialMessage != nil && strings.TrimSpace(*input.InitialMessage) != "" {
		body := strings.TrimSpace(*input.InitialMessage)
		ticket.InitialMessage = &body
		author := session.ProfileID
		initial = &domain.Message{AuthorID: &author, Body: body}
	}

	if err := s.tickets.Create(ctx, ticket, initial); err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	s.metrics.TicketCreated()

	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ProfileActor(session.ProfileID),
		Payload: events.TicketCreatedPayload{
			OwnerID:     ticket.UserID,
			Title:       ticket.Title,
			Description: ticket.Description,
			Priority:    ticket.Priority,
		},
	})

	result := &TicketCreated{Ticket: ticket, Message: initial}
	if initial != nil {
		s.messageStored(ctx, session, initial)
		result.Assistant = s.respond(ctx, session, ticket, initial)
	}
	return result, nil
}

// ListTickets returns the caller's tickets, or all tickets for staff, newest first.
func (s *TicketService) ListTickets(ctx context.Context, session domain.Session, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !session.Staff() {
		owner := session.ProfileID
		repoFilter.OwnerID = &owner
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	return tickets, nil
}

// GetTicket loads a ticket the caller may view.
func (s *TicketService) GetTicket(ctx context.Context, session domain.Session, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	if err := lifecycle.CanView(session, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicketDetail returns the ticket, its messages oldest first and the live assignment.
func (s *TicketService) GetTicketDetail(ctx context.Context, session domain.Session, ticketID string) (*TicketDetail, error) {
	ticket, err := s.GetTicket(ctx, session, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "message")
	}
	assignment, err := s.assignments.GetByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "assignment")
	}
	return &TicketDetail{Ticket: ticket, Messages: messages, Assignment: assignment}, nil
}

// AddMessage appends to the conversation. A message on a closed ticket reopens
// it in the same transaction. The handoff rule runs only after the message is stored.
func (s *TicketService) AddMessage(ctx context.Context, session domain.Session, ticketID, body string) (*MessagePosted, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	if err := lifecycle.CanPost(session, ticket); err != nil {
		return nil, err
	}

	author := session.ProfileID
	msg := &domain.Message{TicketID: ticket.ID, AuthorID: &author, Body: body}
	// Always ask for a reopen: the ticket may have been closed since it was read.
	touch, err := s.messages.Append(ctx, msg, true)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}

	ticket.Status = touch.Status
	if touch.Status != domain.TicketStatusClosed {
		ticket.ClosedAt = nil
	}
	if effect := lifecycle.OnMessage(touch.PreviousStatus); effect.Reopen && touch.Reopened() {
		s.publisher.Publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.ProfileActor(session.ProfileID),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: effect.From,
				NewStatus: touch.Status,
				Reason:    events.ReasonReopened,
			},
		})
	}
	ticket.UpdatedAt = msg.CreatedAt
	s.messageStored(ctx, session, msg)

	return &MessagePosted{
		Ticket:    ticket,
		Message:   msg,
		Assistant: s.respond(ctx, session, ticket, msg),
	}, nil
}

// ChangeStatus applies a status transition. Closing releases the assignment.
func (s *TicketService) ChangeStatus(ctx context.Context, session domain.Session, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	transition, err := lifecycle.ChangeStatus(session, ticket, status, s.now())
	if err != nil {
		return nil, err
	}
	if transition.Noop {
		return ticket, nil
	}

	var released *domain.Assignment
	if transition.ReleasesAssignment() {
		if released, err = s.assignments.GetByTicket(ctx, ticket.ID); err != nil {
			return nil, apperrors.FromRepository(err, "assignment")
		}
	}

	updated, err := s.tickets.UpdateStatus(ctx, ticket.ID, transition.To, transition.ClosedAt, transition.ReleasesAssignment())
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ProfileActor(session.ProfileID),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: transition.From,
			NewStatus: transition.To,
			ClosedAt:  updated.ClosedAt,
			Reason:    events.ReasonManual,
		},
	})
	if released != nil {
		previous := released.AgentID
		s.publisher.Publish(ctx, events.Event{
			Type:     events.EventAssignmentChanged,
			TicketID: ticket.ID,
			Actor:    events.ProfileActor(session.ProfileID),
			Payload: events.AssignmentChangedPayload{
				PreviousAgentID: &previous,
				Reason:          events.ReasonClosed,
			},
		})
	}
	return updated, nil
}

// ChangePriority sets the priority; support and admins only.
func (s *TicketService) ChangePriority(ctx context.Context, session domain.Session, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	change, err := lifecycle.ChangePriority(session, ticket, priority)
	if err != nil {
		return nil, err
	}
	if change.Noop {
		return ticket, nil
	}

	updated, err := s.tickets.UpdatePriority(ctx, ticket.ID, change.To)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TicketID: ticket.ID,
		Actor:    events.ProfileActor(session.ProfileID),
		Payload: events.TicketPriorityChangedPayload{
			OldPriority: change.From,
			NewPriority: change.To,
		},
	})
	return updated, nil
}

func (s *TicketService) messageStored(ctx context.Context, session domain.Session, msg *domain.Message) {
	author := "customer"
	if session.Staff() {
		author = "staff"
	}
	s.metrics.MessageAppended(author)
	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventMessageAppended,
		TicketID: msg.TicketID,
		Actor:    events.ProfileActor(session.ProfileID),
		Payload:  events.NewMessageAppendedPayload(msg),
	})
}

func (s *TicketService) respond(ctx context.Context, session domain.Session, ticket *domain.Ticket, msg *domain.Message) *handoff.Outcome {
	if s.responder == nil {
		return nil
	}
	outcome := s.responder.Respond(ctx, session, ticket, msg)
	return &outcome
}
