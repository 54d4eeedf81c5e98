package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/handoff"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type stubResponder struct {
	calls []string
}

func (r *stubResponder) Respond(_ context.Context, _ domain.Session, ticket *domain.Ticket, msg *domain.Message) handoff.Outcome {
	r.calls = append(r.calls, msg.Body)
	return handoff.Outcome{Kind: handoff.OutcomeReplied, Reply: &domain.Message{TicketID: ticket.ID, Body: "Have you tried turning it off?", IsBot: true}}
}

type ticketFixture struct {
	store     *memStore
	rec       *recorder
	responder *stubResponder
	svc       *TicketService
	now       time.Time
}

func newTicketFixture() *ticketFixture {
	store := newMemStore()
	rec, dispatcher := newRecorder()
	responder := &stubResponder{}
	f := &ticketFixture{store: store, rec: rec, responder: responder, now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	f.svc = NewTicketService(TicketDependencies{
		TicketRepo:     memTickets{store},
		MessageRepo:    memMessages{store},
		AssignmentRepo: memAssignments{store},
		Responder:      responder,
		Publisher:      events.NewPublisher(dispatcher),
		Now:            func() time.Time { return f.now },
	})
	return f
}

func sessionOf(p *domain.Profile) domain.Session {
	return domain.SessionFromProfile(p)
}

func TestCreateTicketWithInitialMessage(t *testing.T) {
	f := newTicketFixture()
	owner := f.store.addProfile("alice", false, false)
	body := "  my printer is on fire  "

	created, err := f.svc.CreateTicket(context.Background(), sessionOf(owner), TicketCreateInput{
		Title:          " Printer ",
		Description:    "smoke everywhere",
		InitialMessage: &body,
	})
	require.NoError(t, err)

	assert.Equal(t, "Printer", created.Ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, created.Ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, created.Ticket.Priority)
	require.NotNil(t, created.Message)
	assert.Equal(t, "my printer is on fire", created.Message.Body)
	assert.Equal(t, created.Ticket.ID, created.Message.TicketID)

	require.NotNil(t, created.Assistant)
	assert.Equal(t, handoff.OutcomeReplied, created.Assistant.Kind)
	assert.Equal(t, []string{"my printer is on fire"}, f.responder.calls)
	assert.Equal(t, []events.EventType{events.EventTicketCreated, events.EventMessageAppended}, f.rec.types())
}

func TestCreateTicketWithoutMessageSkipsAssistant(t *testing.T) {
	f := newTicketFixture()
	owner := f.store.addProfile("alice", false, false)

	created, err := f.svc.CreateTicket(context.Background(), sessionOf(owner), TicketCreateInput{Title: "VPN", Priority: domain.TicketPriorityHigh})
	require.NoError(t, err)
	assert.Nil(t, created.Message)
	assert.Nil(t, created.Assistant)
	assert.Empty(t, f.responder.calls)
	assert.Equal(t, domain.TicketPriorityHigh, created.Ticket.Priority)
}

func TestCreateTicketRejectsUnknownPriority(t *testing.T) {
	f := newTicketFixture()
	owner := f.store.addProfile("alice", false, false)

	_, err := f.svc.CreateTicket(context.Background(), sessionOf(owner), TicketCreateInput{Title: "VPN", Priority: "critical"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	assert.Empty(t, f.rec.types())
}

func TestCreateTicketStorageFailure(t *testing.T) {
	f := newTicketFixture()
	owner := f.store.addProfile("alice", false, false)
	f.store.failWrites = true

	_, err := f.svc.CreateTicket(context.Background(), sessionOf(owner), TicketCreateInput{Title: "VPN"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
	assert.Empty(t, f.rec.types())
}

func TestListTicketsScopesCustomers(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	bob := f.store.addProfile("bob", false, false)
	agent := f.store.addProfile("agent", true, false)
	first := f.store.addTicket(alice.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)
	second := f.store.addTicket(alice.ID, domain.TicketStatusSolved, domain.TicketPriorityLow)
	f.store.addTicket(bob.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)

	mine, err := f.svc.ListTickets(context.Background(), sessionOf(alice), TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")
	assert.Equal(t, first.ID, mine[1].ID)

	all, err := f.svc.ListTickets(context.Background(), sessionOf(agent), TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetTicketDetailForbidsStrangers(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	bob := f.store.addProfile("bob", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)

	_, err := f.svc.GetTicketDetail(context.Background(), sessionOf(bob), ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = f.svc.GetTicketDetail(context.Background(), sessionOf(alice), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestAddMessageReopensClosedTicket(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusClosed, domain.TicketPriorityLow)

	posted, err := f.svc.AddMessage(context.Background(), sessionOf(alice), ticket.ID, "still broken")
	require.NoError(t, err)

	stored := f.store.ticket(ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.ClosedAt)
	assert.Equal(t, domain.TicketStatusOpen, posted.Ticket.Status)
	assert.Equal(t, handoff.OutcomeReplied, posted.Assistant.Kind)

	changed, ok := f.rec.last(events.EventTicketStatusChanged)
	require.True(t, ok)
	payload := changed.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusClosed, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusOpen, payload.NewStatus)
	assert.Equal(t, events.ReasonReopened, payload.Reason)
}

// closesAfterRead closes the ticket right after handing out its snapshot, as a
// reaper sweep or a staff close landing between the read and the write would.
type closesAfterRead struct{ memTickets }

func (r closesAfterRead) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := r.memTickets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	closedAt := r.tick()
	stored := r.tickets[id]
	stored.Status, stored.ClosedAt = domain.TicketStatusClosed, &closedAt
	return ticket, nil
}

func TestAddMessageReopensTicketClosedAfterRead(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow)
	rec, dispatcher := newRecorder()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:     closesAfterRead{memTickets{f.store}},
		MessageRepo:    memMessages{f.store},
		AssignmentRepo: memAssignments{f.store},
		Publisher:      events.NewPublisher(dispatcher),
	})

	posted, err := svc.AddMessage(context.Background(), sessionOf(alice), ticket.ID, "hello?")
	require.NoError(t, err)

	stored := f.store.ticket(ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.ClosedAt)
	assert.Equal(t, domain.TicketStatusOpen, posted.Ticket.Status)

	changed, ok := rec.last(events.EventTicketStatusChanged)
	require.True(t, ok)
	payload := changed.Payload.(events.TicketStatusChangedPayload)
	assert.Equal(t, domain.TicketStatusClosed, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusOpen, payload.NewStatus)
	assert.Equal(t, events.ReasonReopened, payload.Reason)
}

func TestAddMessageKeepsOpenTicketStatus(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusWaitingForResponse, domain.TicketPriorityLow)
	before := f.store.ticket(ticket.ID).UpdatedAt

	_, err := f.svc.AddMessage(context.Background(), sessionOf(alice), ticket.ID, "any news?")
	require.NoError(t, err)

	stored := f.store.ticket(ticket.ID)
	assert.Equal(t, domain.TicketStatusWaitingForResponse, stored.Status)
	assert.True(t, stored.UpdatedAt.After(before))
	assert.Equal(t, []events.EventType{events.EventMessageAppended}, f.rec.types())
}

func TestAddMessageValidation(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	bob := f.store.addProfile("bob", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)

	_, err := f.svc.AddMessage(context.Background(), sessionOf(alice), ticket.ID, "   ")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.AddMessage(context.Background(), sessionOf(bob), ticket.ID, "hi")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	assert.Empty(t, f.store.conversation(ticket.ID))
	assert.Empty(t, f.responder.calls)
}

func TestChangeStatusCustomerMayOnlyClose(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)

	_, err := f.svc.ChangeStatus(context.Background(), sessionOf(alice), ticket.ID, domain.TicketStatusSolved)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	assert.Equal(t, domain.TicketStatusOpen, f.store.ticket(ticket.ID).Status)

	updated, err := f.svc.ChangeStatus(context.Background(), sessionOf(alice), ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)
	assert.Equal(t, f.now, *updated.ClosedAt)
}

func TestChangeStatusCloseReleasesAssignment(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	agent := f.store.addProfile("agent", true, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusInProgress, domain.TicketPriorityLow)
	f.store.assign(ticket.ID, agent.ID)

	_, err := f.svc.ChangeStatus(context.Background(), sessionOf(agent), ticket.ID, domain.TicketStatusClosed)
	require.NoError(t, err)

	detail, err := f.svc.GetTicketDetail(context.Background(), sessionOf(agent), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Assignment)

	released, ok := f.rec.last(events.EventAssignmentChanged)
	require.True(t, ok)
	payload := released.Payload.(events.AssignmentChangedPayload)
	assert.Equal(t, events.ReasonClosed, payload.Reason)
	require.NotNil(t, payload.PreviousAgentID)
	assert.Equal(t, agent.ID, *payload.PreviousAgentID)
	assert.Nil(t, payload.AgentID)
}

func TestChangeStatusNoop(t *testing.T) {
	f := newTicketFixture()
	agent := f.store.addProfile("agent", true, false)
	ticket := f.store.addTicket("someone", domain.TicketStatusSolved, domain.TicketPriorityLow)

	updated, err := f.svc.ChangeStatus(context.Background(), sessionOf(agent), ticket.ID, domain.TicketStatusSolved)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusSolved, updated.Status)
	assert.Empty(t, f.rec.types())
}

func TestChangePriorityStaffOnly(t *testing.T) {
	f := newTicketFixture()
	alice := f.store.addProfile("alice", false, false)
	agent := f.store.addProfile("agent", true, false)
	ticket := f.store.addTicket(alice.ID, domain.TicketStatusOpen, domain.TicketPriorityLow)

	_, err := f.svc.ChangePriority(context.Background(), sessionOf(alice), ticket.ID, domain.TicketPriorityUrgent)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	updated, err := f.svc.ChangePriority(context.Background(), sessionOf(agent), ticket.ID, domain.TicketPriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityUrgent, updated.Priority)

	changed, ok := f.rec.last(events.EventTicketPriorityChanged)
	require.True(t, ok)
	assert.Equal(t, events.TicketPriorityChangedPayload{OldPriority: domain.TicketPriorityLow, NewPriority: domain.TicketPriorityUrgent}, changed.Payload)
}
