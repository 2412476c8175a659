package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Decisions      *handlers.DecisionsHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	v1 := app.Group("/v1")
	v1.Post("/tickets", cfg.Tickets.CreateTicket)
	v1.Get("/tickets", cfg.Tickets.ListTickets)
	v1.Get("/tickets/:id", cfg.Tickets.GetTicket)
	v1.Get("/tickets/:id/diagnosis", cfg.Tickets.GetDiagnosis)

	v1.Get("/decisions", cfg.Decisions.ListDecisions)
	v1.Get("/metrics/summary", cfg.Metrics.Summary)

	review := v1.Group("", cfg.AuthMiddleware.Handle, cfg.AuthMiddleware.RequireReviewer)
	review.Post("/tickets/:id/approve", cfg.Tickets.Approve)
	review.Post("/tickets/:id/reject", cfg.Tickets.Reject)
}
