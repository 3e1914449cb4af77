package events

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketRouted        EventType = "ticket_routed"
	EventTicketAutoResolved  EventType = "ticket_auto_resolved"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketResponseAdded EventType = "ticket_response_added"
)

// Actor encapsulates actor metadata for an event. A zero Actor denotes the
// system or the AI pipeline.
type Actor struct {
	Type       domain.SubjectType `json:"type,omitempty"`
	CustomerID *string            `json:"customer_id,omitempty"`
	AgentID    *string            `json:"agent_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Source   domain.TicketSource   `json:"source"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketRoutedPayload payload.
type TicketRoutedPayload struct {
	RuleID          string  `json:"rule_id"`
	RuleName        string  `json:"rule_name"`
	TeamID          *string `json:"team_id,omitempty"`
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`
}

// TicketAutoResolvedPayload payload.
type TicketAutoResolvedPayload struct {
	Confidence float64 `json:"confidence"`
	ResponseID string  `json:"response_id"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	ChangedFields []string `json:"changed_fields"`
}

// TicketResponseAddedPayload payload.
type TicketResponseAddedPayload struct {
	ResponseID string              `json:"response_id"`
	Type       domain.ResponseType `json:"response_type"`
	AuthorID   *string             `json:"author_id,omitempty"`
}
