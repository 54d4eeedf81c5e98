package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StaffHandler serves admin endpoints: satisfaction surveys and role management.
type StaffHandler struct {
	ratings  *service.RatingService
	profiles *service.ProfileService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(ratings *service.RatingService, profiles *service.ProfileService) *StaffHandler {
	return &StaffHandler{ratings: ratings, profiles: profiles}
}

// ListSurveys GET /admin/surveys.
func (h *StaffHandler) ListSurveys(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	surveys, err := h.ratings.ListSurveys(c.UserContext(), session, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSurveyResponses(surveys)})
}

// SetRoles PUT /admin/profiles/:id/roles.
func (h *StaffHandler) SetRoles(c *fiber.Ctx) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	var req dto.SetRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return err
	}
	profile, err := h.profiles.SetRoles(c.UserContext(), session, c.Params("id"), req.IsSupport, req.IsAdmin)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}
