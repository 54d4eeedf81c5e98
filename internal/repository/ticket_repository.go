package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	OwnerID    *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// StalePolicy selects tickets the reaper may close.
type StalePolicy struct {
	Status          domain.TicketStatus
	ExcludePriority domain.TicketPriority
	UpdatedBefore   time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	// Create stores the ticket and, when initial is non-nil, its first message.
	Create(ctx context.Context, ticket *domain.Ticket, initial *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateStatus writes status and closed_at in one statement. releaseAssignment
	// deletes the ticket's assignment in the same transaction.
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, closedAt *time.Time, releaseAssignment bool) (*domain.Ticket, error)
	UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority) (*domain.Ticket, error)
	ListStale(ctx context.Context, policy StalePolicy) ([]domain.TicketSummary, error)
	// CloseStale closes the given ids that still match policy, releases their
	// assignments and returns what was closed. All or nothing.
	CloseStale(ctx context.Context, ids []string, policy StalePolicy, closedAt time.Time) ([]domain.TicketSummary, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, title, description, initial_message, status, priority, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket, initial *domain.Message) error {
	const insertTicket = `
        INSERT INTO tickets (user_id, title, description, initial_message, status, priority)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertTicket,
			ticket.UserID,
			ticket.Title,
			ticket.Description,
			ticket.InitialMessage,
			ticket.Status,
			ticket.Priority,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return err
		}
		if initial == nil {
			return nil
		}
		initial.TicketID = ticket.ID
		return insertMessage(ctx, tx, initial)
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus, closedAt *time.Time, releaseAssignment bool) (*domain.Ticket, error) {
	query := `UPDATE tickets SET status=$1, closed_at=$2, updated_at=NOW() WHERE id=$3 RETURNING ` + ticketColumns

	var ticket *domain.Ticket
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		ticket, err = scanTicket(tx.QueryRow(ctx, query, status, closedAt, id))
		if err != nil {
			return err
		}
		if releaseAssignment {
			_, err = tx.Exec(ctx, `DELETE FROM ticket_assignments WHERE ticket_id=$1`, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) UpdatePriority(ctx context.Context, id string, priority domain.TicketPriority) (*domain.Ticket, error) {
	query := `UPDATE tickets SET priority=$1, updated_at=NOW() WHERE id=$2 RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, priority, id))
}

func (r *ticketRepository) ListStale(ctx context.Context, policy StalePolicy) ([]domain.TicketSummary, error) {
	const query = `
        SELECT id, title FROM tickets
        WHERE status=$1 AND priority<>$2 AND updated_at < $3
        ORDER BY updated_at ASC`
	rows, err := r.pool.Query(ctx, query, policy.Status, policy.ExcludePriority, policy.UpdatedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *ticketRepository) CloseStale(ctx context.Context, ids []string, policy StalePolicy, closedAt time.Time) ([]domain.TicketSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const closeQuery = `
        UPDATE tickets SET status='closed', closed_at=$1, updated_at=$1
        WHERE id = ANY($2::uuid[]) AND status=$3 AND priority<>$4 AND updated_at < $5
        RETURNING id, title`

	var closed []domain.TicketSummary
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, closeQuery, closedAt, ids, policy.Status, policy.ExcludePriority, policy.UpdatedBefore)
		if err != nil {
			return err
		}
		closed, err = scanSummaries(rows)
		rows.Close()
		if err != nil || len(closed) == 0 {
			return err
		}

		closedIDs := make([]string, len(closed))
		for i, t := range closed {
			closedIDs[i] = t.ID
		}
		_, err = tx.Exec(ctx, `DELETE FROM ticket_assignments WHERE ticket_id = ANY($1::uuid[])`, closedIDs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Title,
		&ticket.Description,
		&ticket.InitialMessage,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanSummaries(rows pgx.Rows) ([]domain.TicketSummary, error) {
	defer rows.Close()
	var result []domain.TicketSummary
	for rows.Next() {
		var t domain.TicketSummary
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
