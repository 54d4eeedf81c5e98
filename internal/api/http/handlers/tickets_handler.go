package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// TicketsHandler manages ticket and conversation endpoints.
type TicketsHandler struct {
	service *service.TicketService
	ratings *service.RatingService
	history *service.HistoryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, ratings *service.RatingService, history *service.HistoryService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, ratings: ratings, history: history}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	created, err := h.service.CreateTicket(c.UserContext(), session, service.TicketCreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		InitialMessage: req.InitialMessage,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MessagePostedResponse{
		Ticket:    dto.NewTicketResponse(created.Ticket),
		Message:   dto.NewMessageResponse(created.Message),
		Assistant: dto.NewAssistantResponse(created.Assistant),
	}})
}

// ListTickets GET /tickets?status=a,b&priority=c&page=1&page_size=20.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{}
	for _, s := range splitQuery(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(s))
	}
	for _, p := range splitQuery(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(p))
	}
	filter.Limit, filter.Offset = pagination(c)

	tickets, err := h.service.ListTickets(c.UserContext(), session, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicketDetail(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail.Ticket, detail.Messages, detail.Assignment)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	posted, err := h.service.AddMessage(c.UserContext(), session, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.MessagePostedResponse{
		Ticket:    dto.NewTicketResponse(posted.Ticket),
		Message:   dto.NewMessageResponse(posted.Message),
		Assistant: dto.NewAssistantResponse(posted.Assistant),
	}})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), session, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdatePriority PATCH /tickets/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ChangePriority(c.UserContext(), session, c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Rate POST /tickets/:id/rating.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.RatingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rating, err := h.ratings.Rate(c.UserContext(), session, c.Params("id"), req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewRatingResponse(rating)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	entries, err := h.history.ListHistory(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}
