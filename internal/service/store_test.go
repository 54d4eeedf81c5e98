package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory stand-in for the Postgres repositories.
type memStore struct {
	mu          sync.Mutex
	clock       time.Time
	tickets     map[string]*domain.Ticket
	messages    []domain.Message
	assignments map[string]*domain.Assignment
	ratings     map[string]*domain.Rating
	profiles    map[string]*domain.Profile
	history     []domain.TicketHistory
	failWrites  bool
}

func newMemStore() *memStore {
	return &memStore{
		clock:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		tickets:     map[string]*domain.Ticket{},
		assignments: map[string]*domain.Assignment{},
		ratings:     map[string]*domain.Rating{},
		profiles:    map[string]*domain.Profile{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) addProfile(nickname string, support, admin bool) *domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &domain.Profile{
		ID:        uuid.NewString(),
		Email:     nickname + "@example.com",
		Nickname:  nickname,
		IsSupport: support,
		IsAdmin:   admin,
	}
	s.profiles[p.ID] = p
	return p
}

func (s *memStore) addTicket(owner string, status domain.TicketStatus, priority domain.TicketPriority) *domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	t := &domain.Ticket{
		ID:        uuid.NewString(),
		UserID:    owner,
		Title:     "Printer on fire",
		Status:    status,
		Priority:  priority,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == domain.TicketStatusClosed {
		t.ClosedAt = &now
	}
	s.tickets[t.ID] = t
	return t
}

func (s *memStore) assign(ticketID, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[ticketID] = &domain.Assignment{ID: uuid.NewString(), TicketID: ticketID, AgentID: agentID}
}

func (s *memStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tickets[id]
}

func (s *memStore) conversation(ticketID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) insertMessage(msg *domain.Message) {
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.tick()
	s.messages = append(s.messages, *msg)
	if t, ok := s.tickets[msg.TicketID]; ok {
		t.UpdatedAt = msg.CreatedAt
	}
}

type memTickets struct{ *memStore }

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket, initial *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return errStoreDown
	}
	now := r.tick()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	stored := *ticket
	r.tickets[ticket.ID] = &stored
	if initial != nil {
		initial.TicketID = ticket.ID
		r.insertMessage(initial)
	}
	return nil
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.OwnerID != nil && t.UserID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (r memTickets) UpdateStatus(_ context.Context, id string, status domain.TicketStatus, closedAt *time.Time, release bool) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return nil, errStoreDown
	}
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Status, t.ClosedAt, t.UpdatedAt = status, closedAt, r.tick()
	if release {
		delete(r.assignments, id)
	}
	cp := *t
	return &cp, nil
}

func (r memTickets) UpdatePriority(_ context.Context, id string, priority domain.TicketPriority) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Priority, t.UpdatedAt = priority, r.tick()
	cp := *t
	return &cp, nil
}

func (r memTickets) ListStale(context.Context, repository.StalePolicy) ([]domain.TicketSummary, error) {
	return nil, nil
}

func (r memTickets) CloseStale(context.Context, []string, repository.StalePolicy, time.Time) ([]domain.TicketSummary, error) {
	return nil, nil
}

type memMessages struct{ *memStore }

func (r memMessages) Append(_ context.Context, msg *domain.Message, reopen bool) (domain.TicketTouch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites {
		return domain.TicketTouch{}, errStoreDown
	}
	t, ok := r.tickets[msg.TicketID]
	if !ok {
		return domain.TicketTouch{}, pgx.ErrNoRows
	}
	touch := domain.TicketTouch{PreviousStatus: t.Status}
	if reopen && t.Status == domain.TicketStatusClosed {
		t.Status, t.ClosedAt = domain.TicketStatusOpen, nil
	}
	touch.Status = t.Status
	r.insertMessage(msg)
	return touch, nil
}

func (r memMessages) ListByTicket(_ context.Context, ticketID string) ([]domain.Message, error) {
	return r.conversation(ticketID), nil
}

type memAssignments struct{ *memStore }

func (r memAssignments) GetByTicket(_ context.Context, ticketID string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[ticketID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r memAssignments) Assign(_ context.Context, a *domain.Assignment, announcement *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[a.TicketID]; ok {
		return repository.ErrAlreadyAssigned
	}
	a.ID = uuid.NewString()
	stored := *a
	r.assignments[a.TicketID] = &stored
	r.insertMessage(announcement)
	return nil
}

func (r memAssignments) Transfer(_ context.Context, a *domain.Assignment, announcement *domain.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.assignments[a.TicketID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	previous := existing.AgentID
	existing.AgentID, existing.AssignedBy = a.AgentID, a.AssignedBy
	a.ID = existing.ID
	r.insertMessage(announcement)
	return previous, nil
}

func (r memAssignments) Release(_ context.Context, ticketID string, announcement *domain.Message) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.assignments[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	delete(r.assignments, ticketID)
	r.insertMessage(announcement)
	return existing, nil
}

type memRatings struct{ *memStore }

func (r memRatings) Create(_ context.Context, rating *domain.Rating) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ratings[rating.TicketID]; ok {
		return &pgconn.PgError{Code: "23505"}
	}
	rating.ID = uuid.NewString()
	rating.CreatedAt = r.tick()
	stored := *rating
	r.ratings[rating.TicketID] = &stored
	return nil
}

func (r memRatings) ListSurveys(_ context.Context, limit, offset int) ([]domain.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Survey
	for _, rating := range r.ratings {
		t := r.tickets[rating.TicketID]
		out = append(out, domain.Survey{Rating: *rating, TicketTitle: t.Title, TicketPriority: t.Priority})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memProfiles struct{ *memStore }

func (r memProfiles) Create(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.profiles {
		if strings.EqualFold(existing.Email, p.Email) || strings.EqualFold(existing.Nickname, p.Nickname) {
			return &pgconn.PgError{Code: "23505"}
		}
	}
	p.ID = uuid.NewString()
	stored := *p
	r.profiles[p.ID] = &stored
	return nil
}

func (r memProfiles) Update(_ context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	stored := *p
	r.profiles[p.ID] = &stored
	return nil
}

func (r memProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (r memProfiles) GetByLogin(_ context.Context, identifier string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if strings.EqualFold(p.Email, identifier) || strings.EqualFold(p.Nickname, identifier) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memProfiles) SetRoles(_ context.Context, id string, isSupport, isAdmin bool) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	p.IsSupport, p.IsAdmin = isSupport, isAdmin
	cp := *p
	return &cp, nil
}

type memHistory struct{ *memStore }

func (r memHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.history {
		if existing.EventID == h.EventID {
			return nil
		}
	}
	h.ID = uuid.NewString()
	r.history = append(r.history, *h)
	return nil
}

func (r memHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecorder() (*recorder, events.Dispatcher) {
	rec := &recorder{}
	d := events.NewInMemoryDispatcher(nil)
	events.SubscribeAll(d, func(_ context.Context, e events.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.events = append(rec.events, e)
		return nil
	})
	return rec, d
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(t events.EventType) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return events.Event{}, false
}
