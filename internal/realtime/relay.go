package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
)

// ChannelForTicket names the feed of one ticket.
func ChannelForTicket(ticketID string) string {
	return "helpdesk:ticket:" + ticketID
}

// Relay forwards every domain event to the feed of its ticket. Consumers must
// not rely on feed order and should order by the timestamps in the events.
type Relay struct {
	broker Broker
	logger *zap.Logger
}

// NewRelay builds a relay.
func NewRelay(broker Broker, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{broker: broker, logger: logger.Named("realtime")}
}

// Register subscribes the relay to every event type.
func (r *Relay) Register(dispatcher events.Dispatcher) {
	events.SubscribeAll(dispatcher, r.forward)
}

func (r *Relay) forward(ctx context.Context, event events.Event) error {
	if event.TicketID == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.broker.Publish(ctx, ChannelForTicket(event.TicketID), payload)
}

// Subscribe opens the feed of one ticket.
func (r *Relay) Subscribe(ctx context.Context, ticketID string) (Subscription, error) {
	return r.broker.Subscribe(ctx, ChannelForTicket(ticketID))
}
