package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/handoff"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AssignmentService handles take-over, transfer and release of tickets.
type AssignmentService struct {
	tickets     repository.TicketRepository
	assignments repository.AssignmentRepository
	profiles    repository.ProfileRepository
	publisher   *events.Publisher
	metrics     *observability.Metrics
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketRepo     repository.TicketRepository
	AssignmentRepo repository.AssignmentRepository
	ProfileRepo    repository.ProfileRepository
	Publisher      *events.Publisher
	Metrics        *observability.Metrics
}

// NewAssignmentService creates service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		assignments: deps.AssignmentRepo,
		profiles:    deps.ProfileRepo,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
	}
}

// TakeOver assigns an unassigned ticket to the calling agent and announces it.
func (s *AssignmentService) TakeOver(ctx context.Context, session domain.Session, ticketID string) (*domain.Assignment, error) {
	if err := lifecycle.RequireStaff(session); err != nil {
		return nil, err
	}
	ticket, err := s.openTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	agent, err := s.profiles.GetByID(ctx, session.ProfileID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "profile")
	}

	assignment := &domain.Assignment{TicketID: ticket.ID, AgentID: agent.ID, AssignedBy: session.ProfileID}
	announcement := &domain.Message{TicketID: ticket.ID, Body: handoff.TakeOverAnnouncement(agent.DisplayName()), IsBot: true}
	if err := s.assignments.Assign(ctx, assignment, announcement); err != nil {
		if errors.Is(err, repository.ErrAlreadyAssigned) {
			return nil, apperrors.NewConflict("ticket is already assigned", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.FromRepository(err, "assignment")
	}

	agentID := agent.ID
	s.announced(ctx, session, announcement, events.AssignmentChangedPayload{
		AgentID: &agentID,
		Reason:  events.ReasonTakeOver,
	})
	return assignment, nil
}

// Transfer moves an assigned ticket to another support agent in one atomic update.
func (s *AssignmentService) Transfer(ctx context.Context, session domain.Session, ticketID, agentID string) (*domain.Assignment, error) {
	if err := lifecycle.RequireStaff(session); err != nil {
		return nil, err
	}
	ticket, err := s.openTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	target, err := s.profiles.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("target agent does not exist", map[string]any{"agent_id": agentID})
		}
		return nil, apperrors.FromRepository(err, "profile")
	}
	if !target.IsSupport && !target.IsAdmin {
		return nil, apperrors.NewValidationError("target is not a support agent", map[string]any{"agent_id": agentID})
	}

	assignment := &domain.Assignment{TicketID: ticket.ID, AgentID: target.ID, AssignedBy: session.ProfileID}
	announcement := &domain.Message{TicketID: ticket.ID, Body: handoff.TransferAnnouncement(target.DisplayName()), IsBot: true}
	previous, err := s.assignments.Transfer(ctx, assignment, announcement)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("ticket is not assigned", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.FromRepository(err, "assignment")
	}

	targetID := target.ID
	s.announced(ctx, session, announcement, events.AssignmentChangedPayload{
		PreviousAgentID: &previous,
		AgentID:         &targetID,
		Reason:          events.ReasonTransfer,
	})
	return assignment, nil
}

// Release removes the assignment so the assistant answers again.
func (s *AssignmentService) Release(ctx context.Context, session domain.Session, ticketID string) error {
	if err := lifecycle.RequireStaff(session); err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return apperrors.FromRepository(err, "ticket")
	}

	announcement := &domain.Message{TicketID: ticket.ID, Body: handoff.ReleaseAnnouncement(), IsBot: true}
	released, err := s.assignments.Release(ctx, ticket.ID, announcement)
	if err != nil {
		return apperrors.FromRepository(err, "assignment")
	}

	previous := released.AgentID
	s.announced(ctx, session, announcement, events.AssignmentChangedPayload{
		PreviousAgentID: &previous,
		Reason:          events.ReasonReleased,
	})
	return nil
}

func (s *AssignmentService) openTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}
	return ticket, nil
}

func (s *AssignmentService) announced(ctx context.Context, session domain.Session, announcement *domain.Message, payload events.AssignmentChangedPayload) {
	actor := events.ProfileActor(session.ProfileID)
	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventAssignmentChanged,
		TicketID: announcement.TicketID,
		Actor:    actor,
		Payload:  payload,
	})
	s.metrics.MessageAppended("bot")
	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventMessageAppended,
		TicketID: announcement.TicketID,
		Actor:    actor,
		Payload:  events.NewMessageAppendedPayload(announcement),
	})
}
