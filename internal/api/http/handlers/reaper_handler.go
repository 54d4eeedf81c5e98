package handlers

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/reaper"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// ReaperTokenHeader authenticates an external scheduler.
const ReaperTokenHeader = "X-Reaper-Token"

// Sweeper runs one inactivity sweep.
type Sweeper interface {
	Run(ctx context.Context) (*reaper.Result, error)
}

// ReaperHandler lets an external scheduler trigger the inactivity sweep.
type ReaperHandler struct {
	sweeper Sweeper
	token   string
}

// NewReaperHandler constructs handler. An empty token disables the endpoint.
func NewReaperHandler(sweeper Sweeper, token string) *ReaperHandler {
	return &ReaperHandler{sweeper: sweeper, token: token}
}

// Run POST /internal/reaper/run.
func (h *ReaperHandler) Run(c *fiber.Ctx) error {
	if h.token == "" {
		return apperrors.NewForbidden("reaper endpoint disabled")
	}
	if subtle.ConstantTimeCompare([]byte(c.Get(ReaperTokenHeader)), []byte(h.token)) != 1 {
		return apperrors.NewUnauthorized("invalid reaper token")
	}
	result, err := h.sweeper.Run(c.UserContext())
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	closed := result.Closed
	if closed == nil {
		closed = []domain.TicketSummary{}
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"closed_count":   result.ClosedCount(),
		"closed_tickets": closed,
		"cutoff":         result.Cutoff,
	}})
}
