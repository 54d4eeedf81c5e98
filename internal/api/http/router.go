package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Profiles       *handlers.ProfileHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Staff          *handlers.StaffHandler
	Reaper         *handlers.ReaperHandler
	Metrics        http.Handler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	if cfg.Reaper != nil {
		app.Post("/internal/reaper/run", cfg.Reaper.Run)
	}

	authenticate := cfg.AuthMiddleware.Handle
	app.Get("/me", authenticate, cfg.Profiles.Me)
	app.Put("/me", authenticate, cfg.Profiles.UpdateMe)

	tickets := app.Group("/tickets", authenticate)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/stream", cfg.Stream.Stream)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Patch("/:id/priority", cfg.Tickets.UpdatePriority)
	tickets.Post("/:id/rating", cfg.Tickets.Rate)

	requireStaff := auth.RequireStaff()
	tickets.Get("/:id/history", requireStaff, cfg.Tickets.History)
	tickets.Post("/:id/takeover", requireStaff, cfg.StaffTickets.TakeOver)
	tickets.Post("/:id/transfer", requireStaff, cfg.StaffTickets.Transfer)
	tickets.Delete("/:id/assignment", requireStaff, cfg.StaffTickets.Release)

	admin := app.Group("/admin", authenticate, auth.RequireAdmin())
	admin.Get("/surveys", cfg.Staff.ListSurveys)
	admin.Put("/profiles/:id/roles", cfg.Staff.SetRoles)
}
