package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ErrAlreadyAssigned is returned by Assign when the ticket already has an agent.
var ErrAlreadyAssigned = errors.New("ticket already assigned")

// AssignmentRepository keeps the single live assignment per ticket. Every write
// stores its announcement message in the same transaction.
type AssignmentRepository interface {
	// GetByTicket returns nil without error when the ticket is unassigned.
	GetByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error)
	Assign(ctx context.Context, assignment *domain.Assignment, announcement *domain.Message) error
	// Transfer replaces the agent of an existing assignment in place and returns
	// the previous agent id. pgx.ErrNoRows means there was nothing to transfer.
	Transfer(ctx context.Context, assignment *domain.Assignment, announcement *domain.Message) (string, error)
	// Release deletes the assignment and returns it; pgx.ErrNoRows if none.
	Release(ctx context.Context, ticketID string, announcement *domain.Message) (*domain.Assignment, error)
}

type assignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository builds repository.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{pool: pool}
}

const assignmentColumns = `id, ticket_id, agent_id, assigned_by, created_at, updated_at`

func (r *assignmentRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM ticket_assignments WHERE ticket_id=$1`
	assignment, err := scanAssignment(r.pool.QueryRow(ctx, query, ticketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return assignment, err
}

func (r *assignmentRepository) Assign(ctx context.Context, assignment *domain.Assignment, announcement *domain.Message) error {
	const query = `
        INSERT INTO ticket_assignments (ticket_id, agent_id, assigned_by)
        VALUES ($1,$2,$3)
        ON CONFLICT (ticket_id) DO NOTHING
        RETURNING id, created_at, updated_at`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query, assignment.TicketID, assignment.AgentID, assignment.AssignedBy).
			Scan(&assignment.ID, &assignment.CreatedAt, &assignment.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyAssigned
		}
		if err != nil {
			return err
		}
		return appendAnnouncement(ctx, tx, announcement)
	})
}

func (r *assignmentRepository) Transfer(ctx context.Context, assignment *domain.Assignment, announcement *domain.Message) (string, error) {
	const query = `
        WITH previous AS (
            SELECT ticket_id, agent_id FROM ticket_assignments WHERE ticket_id=$1 FOR UPDATE
        )
        UPDATE ticket_assignments a
        SET agent_id=$2, assigned_by=$3, updated_at=NOW()
        FROM previous
        WHERE a.ticket_id = previous.ticket_id
        RETURNING a.id, a.created_at, a.updated_at, previous.agent_id`

	var previousAgent string
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query, assignment.TicketID, assignment.AgentID, assignment.AssignedBy).
			Scan(&assignment.ID, &assignment.CreatedAt, &assignment.UpdatedAt, &previousAgent); err != nil {
			return err
		}
		return appendAnnouncement(ctx, tx, announcement)
	})
	if err != nil {
		return "", err
	}
	return previousAgent, nil
}

func (r *assignmentRepository) Release(ctx context.Context, ticketID string, announcement *domain.Message) (*domain.Assignment, error) {
	query := `DELETE FROM ticket_assignments WHERE ticket_id=$1 RETURNING ` + assignmentColumns

	var released *domain.Assignment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		released, err = scanAssignment(tx.QueryRow(ctx, query, ticketID))
		if err != nil {
			return err
		}
		return appendAnnouncement(ctx, tx, announcement)
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func appendAnnouncement(ctx context.Context, tx pgx.Tx, msg *domain.Message) error {
	if msg == nil {
		return nil
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, msg.TicketID); err != nil {
		return err
	}
	return insertMessage(ctx, tx, msg)
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var a domain.Assignment
	if err := row.Scan(&a.ID, &a.TicketID, &a.AgentID, &a.AssignedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
