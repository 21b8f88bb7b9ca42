package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-timekeeper/internal/api/http/handlers"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Timers         *handlers.TimersHandler
	WorkEntries    *handlers.WorkEntriesHandler
	Sla            *handlers.SlaHandler
	SlaDefinitions *handlers.SlaDefinitionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	staff := auth.RequireStaff()
	admin := auth.RequireAdmin()

	protected.Get("/metrics", admin, cfg.Health.Metrics)

	protected.Get("/timers", staff, cfg.Timers.List)
	tickets := protected.Group("/tickets/:ticketId")
	tickets.Get("/timer", staff, cfg.Timers.Get)
	tickets.Post("/timer/start", staff, cfg.Timers.Start)
	tickets.Post("/timer/pause", staff, cfg.Timers.Pause)
	tickets.Post("/timer/resume", staff, cfg.Timers.Resume)
	tickets.Post("/timer/stop", staff, cfg.Timers.Stop)

	tickets.Post("/work-entries", staff, cfg.WorkEntries.Confirm)
	tickets.Post("/work-entries/discard", staff, cfg.WorkEntries.Discard)
	tickets.Get("/work-entries", staff, cfg.WorkEntries.ListForTicket)
	tickets.Get("/time-summary", staff, cfg.WorkEntries.TicketSummary)

	protected.Get("/work-entries", staff, cfg.WorkEntries.List)
	protected.Get("/work-entries/summary", staff, cfg.WorkEntries.Summary)
	protected.Get("/work-entries/:id", staff, cfg.WorkEntries.Get)
	protected.Patch("/work-entries/:id", staff, cfg.WorkEntries.Update)
	protected.Delete("/work-entries/:id", staff, cfg.WorkEntries.Delete)

	tickets.Post("/sla/attach", staff, cfg.Sla.Attach)
	tickets.Post("/sla/first-response", staff, cfg.Sla.FirstResponse)
	tickets.Post("/sla/resolve", staff, cfg.Sla.Resolve)
	tickets.Post("/sla/evaluate", staff, cfg.Sla.Evaluate)
	tickets.Put("/priority", staff, cfg.Sla.ChangePriority)
	tickets.Get("/sla", cfg.Sla.Status)
	tickets.Get("/history", staff, cfg.Sla.History)

	// Reads of SLA state are open to any authenticated caller; writes are not.
	definitions := protected.Group("/sla-definitions")
	definitions.Get("", cfg.SlaDefinitions.List)
	definitions.Post("", admin, cfg.SlaDefinitions.Create)
	definitions.Get("/:id", cfg.SlaDefinitions.Get)
	definitions.Patch("/:id", admin, cfg.SlaDefinitions.Update)
	definitions.Delete("/:id", admin, cfg.SlaDefinitions.Delete)
	definitions.Post("/:id/escalations", admin, cfg.SlaDefinitions.AddEscalation)
	protected.Delete("/sla-escalations/:id", admin, cfg.SlaDefinitions.DeleteEscalation)
}
