package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RequireStaff allows support agents and admins.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !session.Staff() {
			return apperrors.NewForbidden("support role required")
		}
		return c.Next()
	}
}

// RequireAdmin allows admins only.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := SessionFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !session.IsAdmin {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}
