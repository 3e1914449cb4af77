package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	AgentTickets   *handlers.AgentTicketsHandler
	Rules          *handlers.RulesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/customers/register", cfg.Users.Register)
	authGroup.Post("/customers/login", cfg.Users.Login)
	authGroup.Post("/agents/login", cfg.Agents.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireCustomer())
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/responses", cfg.Tickets.AddResponse)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)

	agent := app.Group("/agent", cfg.AuthMiddleware.Handle, auth.RequireAgentRole())
	agent.Get("/tickets", cfg.AgentTickets.ListTickets)
	agent.Get("/tickets/:id", cfg.AgentTickets.GetTicket)
	agent.Patch("/tickets/:id", cfg.AgentTickets.UpdateTicket)
	agent.Post("/tickets/:id/responses", cfg.AgentTickets.AddResponse)
	agent.Get("/tickets/:id/history", cfg.AgentTickets.ListHistory)

	rules := agent.Group("/rules", auth.RequireAgentRole(domain.AgentRoleTeamLead, domain.AgentRoleAdmin))
	rules.Get("", cfg.Rules.ListRules)
	rules.Post("", cfg.Rules.CreateRule)
	rules.Get("/:id", cfg.Rules.GetRule)
	rules.Put("/:id", cfg.Rules.UpdateRule)
	rules.Patch("/:id/active", cfg.Rules.ToggleRule)
	rules.Delete("/:id", cfg.Rules.DeleteRule)

	admin := agent.Group("", auth.RequireAgentRole(domain.AgentRoleAdmin))
	admin.Post("/agents", cfg.Agents.Register)
}
