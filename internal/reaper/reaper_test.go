package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type memoryStore struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	listErr  error
	closeErr error
}

func newMemoryStore(tickets ...*domain.Ticket) *memoryStore {
	s := &memoryStore{tickets: map[string]*domain.Ticket{}}
	for _, t := range tickets {
		s.tickets[t.ID] = t
	}
	return s
}

func matches(t *domain.Ticket, p repository.StalePolicy) bool {
	return t.Status == p.Status && t.Priority != p.ExcludePriority && t.UpdatedAt.Before(p.UpdatedBefore)
}

func (s *memoryStore) ListStale(_ context.Context, p repository.StalePolicy) ([]domain.TicketSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.TicketSummary
	for _, t := range s.tickets {
		if matches(t, p) {
			out = append(out, domain.TicketSummary{ID: t.ID, Title: t.Title})
		}
	}
	return out, nil
}

func (s *memoryStore) CloseStale(_ context.Context, ids []string, p repository.StalePolicy, closedAt time.Time) ([]domain.TicketSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeErr != nil {
		return nil, s.closeErr
	}
	var out []domain.TicketSummary
	for _, id := range ids {
		t := s.tickets[id]
		if t == nil || !matches(t, p) {
			continue
		}
		t.Status = domain.TicketStatusClosed
		ts := closedAt
		t.ClosedAt = &ts
		t.UpdatedAt = closedAt
		out = append(out, domain.TicketSummary{ID: t.ID, Title: t.Title})
	}
	return out, nil
}

var now = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func ticket(id string, status domain.TicketStatus, priority domain.TicketPriority, age time.Duration) *domain.Ticket {
	return &domain.Ticket{
		ID:        id,
		Title:     "ticket " + id,
		Status:    status,
		Priority:  priority,
		UpdatedAt: now.Add(-age),
	}
}

const day = 24 * time.Hour

func newReaper(store Store, window time.Duration, published *[]events.Event) *Reaper {
	dispatcher := events.NewInMemoryDispatcher(nil)
	events.SubscribeAll(dispatcher, func(_ context.Context, e events.Event) error {
		*published = append(*published, e)
		return nil
	})
	return New(Dependencies{
		Store:      store,
		Publisher:  events.NewPublisher(dispatcher),
		StaleAfter: window,
		Now:        func() time.Time { return now },
	})
}

func TestStaleTicketIsClosedOnce(t *testing.T) {
	stale := ticket("t-1", domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow, 20*day)
	store := newMemoryStore(stale)
	var published []events.Event
	r := newReaper(store, 15*day, &published)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, []domain.TicketSummary{{ID: "t-1", Title: "ticket t-1"}}, result.Closed)
	assert.Equal(t, now.Add(-15*day), result.Cutoff)

	assert.Equal(t, domain.TicketStatusClosed, stale.Status)
	require.NotNil(t, stale.ClosedAt)
	assert.Equal(t, now, *stale.ClosedAt)

	require.Len(t, published, 1)
	payload := published[0].Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, events.ReasonInactivity, payload.Reason)
	assert.Equal(t, domain.TicketStatusClosed, payload.NewStatus)

	again, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Candidates)
	assert.Zero(t, again.ClosedCount())
	assert.Equal(t, domain.TicketStatusClosed, stale.Status)
	assert.Len(t, published, 1)
}

func TestPolicySelectsOnlyWaitingNonUrgent(t *testing.T) {
	store := newMemoryStore(
		ticket("waiting-old", domain.TicketStatusWaitingForResponse, domain.TicketPriorityHigh, 11*day),
		ticket("waiting-urgent", domain.TicketStatusWaitingForResponse, domain.TicketPriorityUrgent, 30*day),
		ticket("waiting-fresh", domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow, 9*day),
		ticket("open-old", domain.TicketStatusOpen, domain.TicketPriorityLow, 30*day),
		ticket("progress-old", domain.TicketStatusInProgress, domain.TicketPriorityMedium, 30*day),
		ticket("solved-old", domain.TicketStatusSolved, domain.TicketPriorityMedium, 30*day),
	)
	var published []events.Event
	r := newReaper(store, 0, &published)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Closed, 1)
	assert.Equal(t, "waiting-old", result.Closed[0].ID)
	assert.Equal(t, now.Add(-DefaultStaleAfter), result.Cutoff)

	for id, tk := range store.tickets {
		assert.Equal(t, tk.Status == domain.TicketStatusClosed, tk.ClosedAt != nil, id)
	}
}

func TestActivityBetweenReadAndCloseIsRespected(t *testing.T) {
	tk := ticket("t-1", domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow, 20*day)
	store := &racingStore{memoryStore: newMemoryStore(tk), onList: func() {
		tk.Status = domain.TicketStatusOpen
		tk.UpdatedAt = now
	}}
	var published []events.Event
	r := newReaper(store, 15*day, &published)

	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Empty(t, result.Closed)
	assert.Equal(t, domain.TicketStatusOpen, tk.Status)
	assert.Empty(t, published)
}

type racingStore struct {
	*memoryStore
	onList func()
}

func (s *racingStore) ListStale(ctx context.Context, p repository.StalePolicy) ([]domain.TicketSummary, error) {
	out, err := s.memoryStore.ListStale(ctx, p)
	s.onList()
	return out, err
}

func TestStoreErrorsAbortSweep(t *testing.T) {
	tk := ticket("t-1", domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow, 20*day)
	store := newMemoryStore(tk)
	store.closeErr = errors.New("deadlock detected")
	var published []events.Event
	r := newReaper(store, 15*day, &published)

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.TicketStatusWaitingForResponse, tk.Status)
	assert.Empty(t, published)

	store.closeErr = nil
	store.listErr = errors.New("connection reset")
	_, err = r.Run(context.Background())
	assert.Error(t, err)
}
