package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
)

const notificationTimeout = 15 * time.Second

// ProfileReader resolves ticket owners for notifications.
type ProfileReader interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// NotificationService tells operators about new tickets and escalations. Delivery
// runs after the publishing request has committed and never affects it.
type NotificationService struct {
	notifier  notify.Notifier
	profiles  ProfileReader
	publicURL string
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Notifier  notify.Notifier
	Profiles  ProfileReader
	PublicURL string
	Logger    *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifier:  deps.Notifier,
		profiles:  deps.Profiles,
		publicURL: deps.PublicURL,
		logger:    logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil || n.notifier == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventEscalationRequested, n.handleEscalationRequested)
}

// Wait blocks until in-flight deliveries finish.
func (n *NotificationService) Wait() {
	n.wg.Wait()
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	summary := notify.TicketSummary{
		TicketID:    event.TicketID,
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    payload.Priority,
		URL:         n.ticketURL(event.TicketID),
	}
	n.deliver(ctx, event, func(ctx context.Context) error {
		if n.profiles != nil {
			owner, err := n.profiles.GetByID(ctx, payload.OwnerID)
			if err != nil {
				n.logger.Warn("notification owner lookup failed",
					zap.String("ticket_id", event.TicketID), zap.Error(err))
			} else {
				summary.OwnerName = owner.DisplayName()
				summary.OwnerEmail = owner.Email
			}
		}
		return n.notifier.TicketCreated(ctx, summary)
	})
	return nil
}

func (n *NotificationService) handleEscalationRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.EscalationRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	escalation := notify.Escalation{
		TicketID: event.TicketID,
		Title:    payload.Title,
		Priority: payload.Priority,
		Reason:   payload.Reason,
		URL:      n.ticketURL(event.TicketID),
	}
	n.deliver(ctx, event, func(ctx context.Context) error {
		return n.notifier.EscalationRequested(ctx, escalation)
	})
	return nil
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}()
}

func (n *NotificationService) ticketURL(ticketID string) string {
	if n.publicURL == "" {
		return ""
	}
	return n.publicURL + "/tickets/" + ticketID
}
