package service

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RatingService records customer satisfaction scores.
type RatingService struct {
	tickets   repository.TicketRepository
	ratings   repository.RatingRepository
	publisher *events.Publisher
}

// RatingDependencies bundles collaborators.
type RatingDependencies struct {
	TicketRepo repository.TicketRepository
	RatingRepo repository.RatingRepository
	Publisher  *events.Publisher
}

// NewRatingService creates service.
func NewRatingService(deps RatingDependencies) *RatingService {
	return &RatingService{tickets: deps.TicketRepo, ratings: deps.RatingRepo, publisher: deps.Publisher}
}

// Rate stores the owner's one-off rating of a solved or closed ticket.
func (s *RatingService) Rate(ctx context.Context, session domain.Session, ticketID string, score int, feedback *string) (*domain.Rating, error) {
	if score < domain.MinRating || score > domain.MaxRating {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": score})
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.FromRepository(err, "ticket")
	}
	if err := lifecycle.CanRate(session, ticket); err != nil {
		return nil, err
	}

	rating := &domain.Rating{TicketID: ticket.ID, Rating: score}
	if feedback != nil {
		if trimmed := strings.TrimSpace(*feedback); trimmed != "" {
			rating.Feedback = &trimmed
		}
	}
	if err := s.ratings.Create(ctx, rating); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("ticket already rated", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.FromRepository(err, "rating")
	}

	s.publisher.Publish(ctx, events.Event{
		Type:     events.EventTicketRated,
		TicketID: ticket.ID,
		Actor:    events.ProfileActor(session.ProfileID),
		Payload:  events.TicketRatedPayload{RatingID: rating.ID, Rating: rating.Rating},
	})
	return rating, nil
}

// ListSurveys returns ratings with ticket context, newest first. Admins only.
func (s *RatingService) ListSurveys(ctx context.Context, session domain.Session, limit, offset int) ([]domain.Survey, error) {
	if !session.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	surveys, err := s.ratings.ListSurveys(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.FromRepository(err, "rating")
	}
	return surveys, nil
}
