// Package reaper closes tickets that have waited on the customer for too long.
//
// Policy: a ticket is stale when its status is waiting_for_response, its
// priority is not urgent and it has not been updated within the window. The
// sweep reads candidates once and closes them in one batched update; a second
// run with no intervening activity finds nothing.
package reaper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// DefaultStaleAfter is the inactivity window used when none is configured.
const DefaultStaleAfter = 10 * 24 * time.Hour

// Store is the slice of the ticket repository the sweep needs.
type Store interface {
	ListStale(ctx context.Context, policy repository.StalePolicy) ([]domain.TicketSummary, error)
	CloseStale(ctx context.Context, ids []string, policy repository.StalePolicy, closedAt time.Time) ([]domain.TicketSummary, error)
}

// Result reports one sweep.
type Result struct {
	Cutoff     time.Time              `json:"cutoff"`
	ClosedAt   time.Time              `json:"closed_at"`
	Candidates int                    `json:"candidates"`
	Closed     []domain.TicketSummary `json:"closed_tickets"`
}

// ClosedCount is the number of tickets the sweep closed.
func (r *Result) ClosedCount() int {
	return len(r.Closed)
}

// Dependencies wires the reaper.
type Dependencies struct {
	Store      Store
	Publisher  *events.Publisher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	StaleAfter time.Duration
	Now        func() time.Time
}

// Reaper runs inactivity sweeps.
type Reaper struct {
	store      Store
	publisher  *events.Publisher
	metrics    *observability.Metrics
	logger     *zap.Logger
	staleAfter time.Duration
	now        func() time.Time
}

// New builds a reaper.
func New(deps Dependencies) *Reaper {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	staleAfter := deps.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Reaper{
		store:      deps.Store,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		logger:     logger.Named("reaper"),
		staleAfter: staleAfter,
		now:        now,
	}
}

// Policy returns the staleness predicate for a sweep started at now.
func (r *Reaper) Policy(now time.Time) repository.StalePolicy {
	return repository.StalePolicy{
		Status:          domain.TicketStatusWaitingForResponse,
		ExcludePriority: domain.TicketPriorityUrgent,
		UpdatedBefore:   now.Add(-r.staleAfter),
	}
}

// Run performs one sweep. On error nothing is closed and the whole sweep may be retried.
func (r *Reaper) Run(ctx context.Context) (*Result, error) {
	now := r.now().UTC()
	policy := r.Policy(now)
	result := &Result{Cutoff: policy.UpdatedBefore, ClosedAt: now}

	candidates, err := r.store.ListStale(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("list stale tickets: %w", err)
	}
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		r.logger.Info("sweep finished", zap.Time("cutoff", policy.UpdatedBefore), zap.Int("candidates", 0), zap.Int("closed", 0))
		return result, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	closed, err := r.store.CloseStale(ctx, ids, policy, now)
	if err != nil {
		return nil, fmt.Errorf("close stale tickets: %w", err)
	}
	result.Closed = closed

	closedAt := now
	for _, t := range closed {
		r.publisher.Publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: t.ID,
			Actor:    events.SystemActor("reaper"),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: domain.TicketStatusWaitingForResponse,
				NewStatus: domain.TicketStatusClosed,
				ClosedAt:  &closedAt,
				Reason:    events.ReasonInactivity,
			},
		})
	}
	r.metrics.ReaperClosed(len(closed))

	r.logger.Info("sweep finished",
		zap.Time("cutoff", policy.UpdatedBefore),
		zap.Int("candidates", len(candidates)),
		zap.Int("closed", len(closed)))
	return result, nil
}
