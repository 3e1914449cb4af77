package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AgentTicketsHandler exposes the agent-side ticket queue.
type AgentTicketsHandler struct {
	service *service.TicketService
}

// NewAgentTicketsHandler constructs handler.
func NewAgentTicketsHandler(ticketService *service.TicketService) *AgentTicketsHandler {
	return &AgentTicketsHandler{service: ticketService}
}

// ListTickets GET /agent/tickets.
func (h *AgentTicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := parseTicketQuery(c)
	if teamID := c.Query("team_id"); teamID != "" {
		filter.TeamID = &teamID
	}
	if agentID := c.Query("agent_id"); agentID != "" {
		filter.AssignedAgentID = &agentID
	}
	if c.QueryBool("unassigned") {
		unassigned := true
		filter.Unassigned = &unassigned
	}
	if customerID := c.Query("customer_id"); customerID != "" {
		filter.CustomerID = &customerID
	}

	tickets, err := h.service.ListTickets(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /agent/tickets/:id.
func (h *AgentTicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	responses, err := h.service.ListResponses(c.Context(), ticket.ID)
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.Context(), ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, responses, history)})
}

// UpdateTicket PATCH /agent/tickets/:id.
func (h *AgentTicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Agent == nil {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.UpdateTicket(c.Context(), c.Params("id"),
		service.Actor{Type: domain.SubjectTypeAgent, ID: &principal.Agent.ID},
		service.UpdateTicketInput{
			Title:           req.Title,
			Description:     req.Description,
			Priority:        req.Priority,
			Status:          req.Status,
			Tags:            req.Tags,
			TeamID:          req.TeamID,
			AssignedAgentID: req.AssignedAgentID,
			Unassign:        req.Unassign,
			CustomFields:    req.CustomFields,
		})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// AddResponse POST /agent/tickets/:id/responses.
func (h *AgentTicketsHandler) AddResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Agent == nil {
		return apperrors.NewUnauthorized("agent required")
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	response, err := h.service.AddResponse(c.Context(), c.Params("id"),
		service.Actor{Type: domain.SubjectTypeAgent, ID: &principal.Agent.ID},
		domain.ResponseTypeAgent, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": responseView(response)})
}

// ListHistory GET /agent/tickets/:id/history.
func (h *AgentTicketsHandler) ListHistory(c *fiber.Ctx) error {
	history, err := h.service.ListHistory(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	entries := make([]dto.TicketHistoryResponse, 0, len(history))
	for _, entry := range history {
		entries = append(entries, dto.TicketHistoryResponse{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			Action:    entry.Action,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			CreatedAt: entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": entries})
}
