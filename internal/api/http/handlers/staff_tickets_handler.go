package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StaffTicketsHandler exposes the support-only handoff actions.
type StaffTicketsHandler struct {
	assignments *service.AssignmentService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(assignments *service.AssignmentService) *StaffTicketsHandler {
	return &StaffTicketsHandler{assignments: assignments}
}

// TakeOver POST /tickets/:id/takeover.
func (h *StaffTicketsHandler) TakeOver(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	assignment, err := h.assignments.TakeOver(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Transfer POST /tickets/:id/transfer.
func (h *StaffTicketsHandler) Transfer(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransferRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	assignment, err := h.assignments.Transfer(c.UserContext(), session, c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Release DELETE /tickets/:id/assignment.
func (h *StaffTicketsHandler) Release(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := h.assignments.Release(c.UserContext(), session, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
