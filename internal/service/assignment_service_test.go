package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/handoff"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type assignmentFixture struct {
	store    *memStore
	rec      *recorder
	svc      *AssignmentService
	customer *domain.Profile
	agent    *domain.Profile
	ticket   *domain.Ticket
}

func newAssignmentFixture() *assignmentFixture {
	store := newMemStore()
	rec, dispatcher := newRecorder()
	f := &assignmentFixture{store: store, rec: rec}
	f.svc = NewAssignmentService(AssignmentDependencies{
		TicketRepo:     memTickets{store},
		AssignmentRepo: memAssignments{store},
		ProfileRepo:    memProfiles{store},
		Publisher:      events.NewPublisher(dispatcher),
	})
	f.customer = store.addProfile("alice", false, false)
	f.agent = store.addProfile("marta", true, false)
	f.ticket = store.addTicket(f.customer.ID, domain.TicketStatusOpen, domain.TicketPriorityMedium)
	return f
}

func TestTakeOverAssignsAndAnnounces(t *testing.T) {
	f := newAssignmentFixture()

	assignment, err := f.svc.TakeOver(context.Background(), sessionOf(f.agent), f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, f.agent.ID, assignment.AgentID)

	conversation := f.store.conversation(f.ticket.ID)
	require.Len(t, conversation, 1)
	assert.True(t, conversation[0].IsBot)
	assert.Nil(t, conversation[0].AuthorID)
	assert.Equal(t, handoff.TakeOverAnnouncement("marta"), conversation[0].Body)

	assert.Equal(t, []events.EventType{events.EventAssignmentChanged, events.EventMessageAppended}, f.rec.types())
	changed, _ := f.rec.last(events.EventAssignmentChanged)
	payload := changed.Payload.(events.AssignmentChangedPayload)
	assert.Equal(t, events.ReasonTakeOver, payload.Reason)
	require.NotNil(t, payload.AgentID)
	assert.Equal(t, f.agent.ID, *payload.AgentID)
}

func TestTakeOverRules(t *testing.T) {
	f := newAssignmentFixture()

	_, err := f.svc.TakeOver(context.Background(), sessionOf(f.customer), f.ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = f.svc.TakeOver(context.Background(), sessionOf(f.agent), f.ticket.ID)
	require.NoError(t, err)

	other := f.store.addProfile("omar", true, false)
	_, err = f.svc.TakeOver(context.Background(), sessionOf(other), f.ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	assert.Len(t, f.store.conversation(f.ticket.ID), 1)

	closed := f.store.addTicket(f.customer.ID, domain.TicketStatusClosed, domain.TicketPriorityLow)
	_, err = f.svc.TakeOver(context.Background(), sessionOf(f.agent), closed.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestTransferReplacesAgent(t *testing.T) {
	f := newAssignmentFixture()
	target := f.store.addProfile("omar", true, false)
	f.store.assign(f.ticket.ID, f.agent.ID)

	assignment, err := f.svc.Transfer(context.Background(), sessionOf(f.agent), f.ticket.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, assignment.AgentID)

	detail, err := memAssignments{f.store}.GetByTicket(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, target.ID, detail.AgentID)

	conversation := f.store.conversation(f.ticket.ID)
	require.Len(t, conversation, 1)
	assert.Equal(t, handoff.TransferAnnouncement("omar"), conversation[0].Body)

	changed, _ := f.rec.last(events.EventAssignmentChanged)
	payload := changed.Payload.(events.AssignmentChangedPayload)
	assert.Equal(t, f.agent.ID, *payload.PreviousAgentID)
	assert.Equal(t, target.ID, *payload.AgentID)
	assert.Equal(t, events.ReasonTransfer, payload.Reason)
}

func TestTransferRules(t *testing.T) {
	f := newAssignmentFixture()
	target := f.store.addProfile("omar", true, false)

	_, err := f.svc.Transfer(context.Background(), sessionOf(f.agent), f.ticket.ID, target.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict), "nothing to transfer")

	f.store.assign(f.ticket.ID, f.agent.ID)
	_, err = f.svc.Transfer(context.Background(), sessionOf(f.agent), f.ticket.ID, f.customer.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation), "target must be staff")

	_, err = f.svc.Transfer(context.Background(), sessionOf(f.agent), f.ticket.ID, "ghost")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.Transfer(context.Background(), sessionOf(f.customer), f.ticket.ID, target.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	assert.Empty(t, f.rec.types())
}

func TestReleaseHandsTicketBack(t *testing.T) {
	f := newAssignmentFixture()
	f.store.assign(f.ticket.ID, f.agent.ID)

	require.NoError(t, f.svc.Release(context.Background(), sessionOf(f.agent), f.ticket.ID))

	current, err := memAssignments{f.store}.GetByTicket(context.Background(), f.ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Equal(t, handoff.ReleaseAnnouncement(), f.store.conversation(f.ticket.ID)[0].Body)

	err = f.svc.Release(context.Background(), sessionOf(f.agent), f.ticket.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
