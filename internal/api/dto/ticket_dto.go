package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Source       domain.TicketSource   `json:"source"`
	Priority     domain.TicketPriority `json:"priority"`
	Tags         []string              `json:"tags"`
	CustomFields map[string]any        `json:"custom_fields"`
	Metadata     map[string]any        `json:"metadata"`
}

// UpdateTicketRequest is a sparse patch; absent fields are untouched.
type UpdateTicketRequest struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Priority        *domain.TicketPriority `json:"priority"`
	Status          *domain.TicketStatus   `json:"status"`
	Tags            *[]string              `json:"tags"`
	TeamID          *string                `json:"team_id"`
	AssignedAgentID *string                `json:"assigned_agent_id"`
	Unassign        bool                   `json:"unassign"`
	CustomFields    map[string]any         `json:"custom_fields"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	Body string `json:"body"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string                `json:"id"`
	ExternalKey     string                `json:"external_key"`
	CustomerID      string                `json:"customer_id"`
	TeamID          *string               `json:"team_id"`
	AssignedAgentID *string               `json:"assigned_agent_id"`
	Title           string                `json:"title"`
	Source          domain.TicketSource   `json:"source"`
	Status          domain.TicketStatus   `json:"status"`
	Priority        domain.TicketPriority `json:"priority"`
	Tags            []string              `json:"tags"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description  string                  `json:"description"`
	CustomFields map[string]any          `json:"custom_fields,omitempty"`
	Metadata     map[string]any          `json:"metadata,omitempty"`
	ClosedAt     *time.Time              `json:"closed_at"`
	Responses    []TicketResponseView    `json:"responses"`
	History      []TicketHistoryResponse `json:"history"`
}

// TicketResponseView represents one thread entry.
type TicketResponseView struct {
	ID        string              `json:"id"`
	Type      domain.ResponseType `json:"type"`
	AuthorID  *string             `json:"author_id"`
	Body      string              `json:"body"`
	CreatedAt time.Time           `json:"created_at"`
}

// TicketHistoryResponse represents one audit entry.
type TicketHistoryResponse struct {
	ID        string               `json:"id"`
	ActorID   *string              `json:"actor_id"`
	Action    domain.HistoryAction `json:"action"`
	OldValue  map[string]any       `json:"old_value,omitempty"`
	NewValue  map[string]any       `json:"new_value,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}
