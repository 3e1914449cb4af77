package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// RuleRequest is the create/update payload for routing rules.
type RuleRequest struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Priority     int                    `json:"priority"`
	Conditions   []domain.RuleCondition `json:"conditions"`
	Action       domain.RuleAction      `json:"action"`
	ActionTarget string                 `json:"action_target"`
	IsActive     *bool                  `json:"is_active"`
}

// RuleToggleRequest flips a rule's active flag.
type RuleToggleRequest struct {
	Active bool `json:"active"`
}

// RuleResponse is the API representation of a routing rule.
type RuleResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Priority     int                    `json:"priority"`
	Conditions   []domain.RuleCondition `json:"conditions"`
	Action       domain.RuleAction      `json:"action"`
	ActionTarget string                 `json:"action_target"`
	IsActive     bool                   `json:"is_active"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
