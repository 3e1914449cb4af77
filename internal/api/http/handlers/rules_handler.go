package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// RulesHandler administers routing rules.
type RulesHandler struct {
	service *service.RoutingService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(routingService *service.RoutingService) *RulesHandler {
	return &RulesHandler{service: routingService}
}

// CreateRule POST /agent/rules.
func (h *RulesHandler) CreateRule(c *fiber.Ctx) error {
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule := ruleFromRequest(req)
	if err := h.service.CreateRule(c.Context(), rule); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ruleResponse(rule)})
}

// UpdateRule PUT /agent/rules/:id.
func (h *RulesHandler) UpdateRule(c *fiber.Ctx) error {
	var req dto.RuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule := ruleFromRequest(req)
	rule.ID = c.Params("id")
	if err := h.service.UpdateRule(c.Context(), rule); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// ToggleRule PATCH /agent/rules/:id/active.
func (h *RulesHandler) ToggleRule(c *fiber.Ctx) error {
	var req dto.RuleToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.service.ToggleRule(c.Context(), c.Params("id"), req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// DeleteRule DELETE /agent/rules/:id.
func (h *RulesHandler) DeleteRule(c *fiber.Ctx) error {
	if err := h.service.DeleteRule(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetRule GET /agent/rules/:id.
func (h *RulesHandler) GetRule(c *fiber.Ctx) error {
	rule, err := h.service.GetRule(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ruleResponse(rule)})
}

// ListRules GET /agent/rules.
func (h *RulesHandler) ListRules(c *fiber.Ctx) error {
	rules, err := h.service.ListRules(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.RuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, ruleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func ruleFromRequest(req dto.RuleRequest) *domain.RoutingRule {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &domain.RoutingRule{
		Name:         req.Name,
		Description:  req.Description,
		Priority:     req.Priority,
		Conditions:   req.Conditions,
		Action:       req.Action,
		ActionTarget: req.ActionTarget,
		IsActive:     active,
	}
}

func ruleResponse(rule *domain.RoutingRule) dto.RuleResponse {
	return dto.RuleResponse{
		ID:           rule.ID,
		Name:         rule.Name,
		Description:  rule.Description,
		Priority:     rule.Priority,
		Conditions:   rule.Conditions,
		Action:       rule.Action,
		ActionTarget: rule.ActionTarget,
		IsActive:     rule.IsActive,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.UpdatedAt,
	}
}
