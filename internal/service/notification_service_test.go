package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
)

type capturingNotifier struct {
	mu          sync.Mutex
	created     []notify.TicketSummary
	escalations []notify.Escalation
	err         error
}

func (n *capturingNotifier) TicketCreated(_ context.Context, s notify.TicketSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, s)
	return n.err
}

func (n *capturingNotifier) EscalationRequested(_ context.Context, e notify.Escalation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.escalations = append(n.escalations, e)
	return n.err
}

func TestNotificationsAfterTicketCreated(t *testing.T) {
	store := newMemStore()
	dispatcher := events.NewInMemoryDispatcher(nil)
	notifier := &capturingNotifier{}
	svc := NewNotificationService(NotificationDependencies{
		Notifier:  notifier,
		Profiles:  memProfiles{store},
		PublicURL: "https://help.example.com",
		Logger:    zap.NewNop(),
	})
	svc.RegisterHandlers(dispatcher)

	alice := store.addProfile("alice", false, false)
	tickets := NewTicketService(TicketDependencies{
		TicketRepo:     memTickets{store},
		MessageRepo:    memMessages{store},
		AssignmentRepo: memAssignments{store},
		Publisher:      events.NewPublisher(dispatcher),
	})
	created, err := tickets.CreateTicket(context.Background(), sessionOf(alice), TicketCreateInput{Title: "Cannot log in", Description: "since monday"})
	require.NoError(t, err)
	svc.Wait()

	require.Len(t, notifier.created, 1)
	summary := notifier.created[0]
	assert.Equal(t, created.Ticket.ID, summary.TicketID)
	assert.Equal(t, "Cannot log in", summary.Title)
	assert.Equal(t, "alice", summary.OwnerName)
	assert.Equal(t, "alice@example.com", summary.OwnerEmail)
	assert.Equal(t, "https://help.example.com/tickets/"+created.Ticket.ID, summary.URL)
}

func TestNotificationFailureDoesNotFailPublisher(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	notifier := &capturingNotifier{err: errors.New("smtp down")}
	svc := NewNotificationService(NotificationDependencies{Notifier: notifier})
	svc.RegisterHandlers(dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	events.NewPublisher(dispatcher).Publish(ctx, events.Event{
		Type:     events.EventEscalationRequested,
		TicketID: "t-9",
		Payload:  events.EscalationRequestedPayload{Reason: "customer asked for a human", Title: "Refund"},
	})
	cancel()
	svc.Wait()

	require.Len(t, notifier.escalations, 1)
	assert.Equal(t, "customer asked for a human", notifier.escalations[0].Reason)
	assert.Empty(t, notifier.escalations[0].URL)
}

func TestNotificationServiceWithoutNotifierSubscribesNothing(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	svc := NewNotificationService(NotificationDependencies{})
	svc.RegisterHandlers(dispatcher)

	events.NewPublisher(dispatcher).Publish(context.Background(), events.Event{Type: events.EventTicketCreated, TicketID: "t-1"})
	svc.Wait()
}
