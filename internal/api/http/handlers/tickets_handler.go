package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages customer-facing ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	ticket, err := h.service.CreateTicket(c.Context(), service.CreateTicketInput{
		CustomerID:   principal.Customer.ID,
		Title:        req.Title,
		Description:  req.Description,
		Source:       req.Source,
		Priority:     req.Priority,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	filter := parseTicketQuery(c)
	filter.CustomerID = &principal.Customer.ID

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

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	ticket, err := h.ownedTicket(c, principal.Customer.ID)
	if err != nil {
		return err
	}
	return h.renderDetail(c, ticket)
}

// AddResponse POST /tickets/:id/responses.
func (h *TicketsHandler) AddResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	ticket, err := h.ownedTicket(c, principal.Customer.ID)
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	response, err := h.service.AddResponse(c.Context(), ticket.ID,
		service.Actor{Type: domain.SubjectTypeCustomer, ID: &principal.Customer.ID},
		domain.ResponseTypeCustomer, req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": responseView(response)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Customer == nil {
		return apperrors.NewUnauthorized("customer required")
	}
	ticket, err := h.ownedTicket(c, principal.Customer.ID)
	if err != nil {
		return err
	}
	closed := domain.TicketStatusClosed
	updated, err := h.service.UpdateTicket(c.Context(), ticket.ID,
		service.Actor{Type: domain.SubjectTypeCustomer, ID: &principal.Customer.ID},
		service.UpdateTicketInput{Status: &closed})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(updated)})
}

// ownedTicket loads the path ticket and hides other customers' tickets
// behind a plain not-found.
func (h *TicketsHandler) ownedTicket(c *fiber.Ctx, customerID string) (*domain.Ticket, error) {
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if ticket.CustomerID != customerID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": c.Params("id")})
	}
	return ticket, nil
}

func (h *TicketsHandler) renderDetail(c *fiber.Ctx, ticket *domain.Ticket) error {
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

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if sourceStr := c.Query("source"); sourceStr != "" {
		for _, part := range strings.Split(sourceStr, ",") {
			filter.Sources = append(filter.Sources, domain.TicketSource(strings.TrimSpace(part)))
		}
	}
	if q := c.Query("q"); q != "" {
		filter.SearchTerm = &q
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:              ticket.ID,
		ExternalKey:     ticket.ExternalKey,
		CustomerID:      ticket.CustomerID,
		TeamID:          ticket.TeamID,
		AssignedAgentID: ticket.AssignedAgentID,
		Title:           ticket.Title,
		Source:          ticket.Source,
		Status:          ticket.Status,
		Priority:        ticket.Priority,
		Tags:            ticket.Tags,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, responses []domain.TicketResponse, history []domain.TicketHistory) dto.TicketDetailResponse {
	views := make([]dto.TicketResponseView, 0, len(responses))
	for i := range responses {
		views = append(views, responseView(&responses[i]))
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
	return dto.TicketDetailResponse{
		TicketSummary: ticketSummary(ticket),
		Description:   ticket.Description,
		CustomFields:  ticket.CustomFields,
		Metadata:      ticket.Metadata,
		ClosedAt:      ticket.ClosedAt,
		Responses:     views,
		History:       entries,
	}
}

func responseView(response *domain.TicketResponse) dto.TicketResponseView {
	return dto.TicketResponseView{
		ID:        response.ID,
		Type:      response.Type,
		AuthorID:  response.AuthorID,
		Body:      response.Body,
		CreatedAt: response.CreatedAt,
	}
}
