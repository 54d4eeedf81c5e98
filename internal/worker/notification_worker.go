package worker

import (
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/service"
)

// Subscribers are the event consumers that run next to the services.
type Subscribers struct {
	Notifications *service.NotificationService
	History       *service.HistoryService
	Relay         *realtime.Relay
}

// StartEventSubscribers registers every configured consumer on the dispatcher.
// The history journal is registered first so it records an event before any
// slower consumer sees it.
func StartEventSubscribers(dispatcher events.Dispatcher, subs Subscribers) {
	if dispatcher == nil {
		return
	}
	if subs.History != nil {
		subs.History.Register(dispatcher)
	}
	if subs.Relay != nil {
		subs.Relay.Register(dispatcher)
	}
	if subs.Notifications != nil {
		subs.Notifications.RegisterHandlers(dispatcher)
	}
}
