package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// HistoryService journals domain events per ticket.
type HistoryService struct {
	tickets repository.TicketRepository
	history repository.TicketHistoryRepository
}

// NewHistoryService creates service.
func NewHistoryService(tickets repository.TicketRepository, history repository.TicketHistoryRepository) *HistoryService {
	return &HistoryService{tickets: tickets, history: history}
}

// Register subscribes the journal to every event type.
func (s *HistoryService) Register(dispatcher events.Dispatcher) {
	events.SubscribeAll(dispatcher, s.Record)
}

// Record stores one event. Replaying the same event id is a no-op.
func (s *HistoryService) Record(ctx context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	payload, err := payloadMap(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	if event.Actor.System != "" {
		payload["system_actor"] = event.Actor.System
	}
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:  event.TicketID,
		EventID:   event.ID,
		EventType: string(event.Type),
		ActorID:   event.Actor.ProfileID,
		Payload:   payload,
		CreatedAt: event.Timestamp,
	})
}

// ListHistory returns a ticket's journal, oldest first. Support and admins only.
func (s *HistoryService) ListHistory(ctx context.Context, session domain.Session, ticketID string) ([]domain.TicketHistory, error) {
	if err := lifecycle.RequireStaff(session); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "history")
	}
	return entries, nil
}

func payloadMap(payload any) (map[string]any, error) {
	out := map[string]any{}
	if payload == nil {
		return out, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
