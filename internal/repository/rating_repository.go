package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// RatingRepository stores one rating per ticket.
type RatingRepository interface {
	Create(ctx context.Context, rating *domain.Rating) error
	ListSurveys(ctx context.Context, limit, offset int) ([]domain.Survey, error)
}

type ratingRepository struct {
	pool *pgxpool.Pool
}

// NewRatingRepository builds repository.
func NewRatingRepository(pool *pgxpool.Pool) RatingRepository {
	return &ratingRepository{pool: pool}
}

// Create fails with a unique violation when the ticket is already rated.
func (r *ratingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	const query = `
        INSERT INTO ticket_ratings (ticket_id, rating, feedback)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, rating.TicketID, rating.Rating, rating.Feedback).
		Scan(&rating.ID, &rating.CreatedAt)
}

func (r *ratingRepository) ListSurveys(ctx context.Context, limit, offset int) ([]domain.Survey, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT r.id, r.ticket_id, r.rating, r.feedback, r.created_at,
               t.title, t.priority, p.nickname
        FROM ticket_ratings r
        JOIN tickets t ON t.id = r.ticket_id
        LEFT JOIN profiles p ON p.id = t.user_id
        ORDER BY r.created_at DESC
        LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Survey
	for rows.Next() {
		var s domain.Survey
		if err := rows.Scan(
			&s.ID,
			&s.TicketID,
			&s.Rating.Rating,
			&s.Feedback,
			&s.CreatedAt,
			&s.TicketTitle,
			&s.TicketPriority,
			&s.OwnerNickname,
		); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
