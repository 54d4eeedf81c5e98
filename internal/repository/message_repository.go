package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MessageRepository manages the append-only ticket conversation.
type MessageRepository interface {
	// Append stores the message and touches the parent ticket. With reopen set,
	// a closed ticket returns to open in the same transaction. The returned
	// statuses come from the locked row, not from an earlier read.
	Append(ctx context.Context, msg *domain.Message, reopen bool) (domain.TicketTouch, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Append(ctx context.Context, msg *domain.Message, reopen bool) (domain.TicketTouch, error) {
	const lockTicket = `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`
	const touchTicket = `
        UPDATE tickets SET
            status    = CASE WHEN $2 AND status='closed' THEN 'open' ELSE status END,
            closed_at = CASE WHEN $2 AND status='closed' THEN NULL ELSE closed_at END,
            updated_at = NOW()
        WHERE id=$1
        RETURNING status`

	var touch domain.TicketTouch
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, lockTicket, msg.TicketID).Scan(&touch.PreviousStatus); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, touchTicket, msg.TicketID, reopen).Scan(&touch.Status); err != nil {
			return err
		}
		return insertMessage(ctx, tx, msg)
	})
	if err != nil {
		return domain.TicketTouch{}, err
	}
	return touch, nil
}

func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `
        SELECT id, ticket_id, author_id, body, is_bot, created_at
        FROM messages WHERE ticket_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.AuthorID,
			&msg.Body,
			&msg.IsBot,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (ticket_id, author_id, body, is_bot)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		msg.TicketID,
		msg.AuthorID,
		msg.Body,
		msg.IsBot,
	).Scan(&msg.ID, &msg.CreatedAt)
}
