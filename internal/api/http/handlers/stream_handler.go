package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/realtime"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const streamKeepAlive = 25 * time.Second

// TicketFeed opens the realtime feed of one ticket.
type TicketFeed interface {
	Subscribe(ctx context.Context, ticketID string) (realtime.Subscription, error)
}

// StreamHandler serves GET /tickets/:id/stream as Server-Sent Events.
type StreamHandler struct {
	tickets *service.TicketService
	feed    TicketFeed
	logger  *zap.Logger
}

// NewStreamHandler constructs handler.
func NewStreamHandler(tickets *service.TicketService, feed TicketFeed, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{tickets: tickets, feed: feed, logger: logger}
}

// Stream relays domain events of a ticket the caller may view.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}

	// The feed outlives the handler; fasthttp runs the stream writer after it returns.
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.feed.Subscribe(ctx, ticket.ID)
	if err != nil {
		cancel()
		return apperrors.NewStorageError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.logger.With(zap.String("ticket_id", ticket.ID))
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer sub.Close()
		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case raw, ok := <-sub.Messages():
				if !ok {
					return
				}
				writeEvent(w, raw)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err := w.Flush(); err != nil {
				log.Debug("stream client gone", zap.Error(err))
				return
			}
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, raw []byte) {
	var head struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err == nil && head.Type != "" {
		fmt.Fprintf(w, "id: %s\nevent: %s\n", head.ID, head.Type)
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
}
