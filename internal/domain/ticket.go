package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "new"
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketSource identifies the origin channel of a ticket.
type TicketSource string

const (
	TicketSourceWeb   TicketSource = "web"
	TicketSourceEmail TicketSource = "email"
	TicketSourceChat  TicketSource = "chat"
	TicketSourceAPI   TicketSource = "api"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	ExternalKey     string
	CustomerID      string
	TeamID          *string
	AssignedAgentID *string
	Title           string
	Description     string
	Source          TicketSource
	Status          TicketStatus
	Priority        TicketPriority
	Tags            []string
	CustomFields    map[string]any
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// IsValidStatus reports whether s is part of the closed status set.
func IsValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsValidSource reports whether src is a known intake channel.
func IsValidSource(src TicketSource) bool {
	switch src {
	case TicketSourceWeb, TicketSourceEmail, TicketSourceChat, TicketSourceAPI:
		return true
	}
	return false
}

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// allowedTransitions is the ticket status state machine. Terminal states may
// only be reopened back to open by a manual actor.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:      {TicketStatusOpen, TicketStatusResolved},
	TicketStatusOpen:     {TicketStatusPending, TicketStatusResolved, TicketStatusClosed},
	TicketStatusPending:  {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved: {TicketStatusOpen, TicketStatusClosed},
	TicketStatusClosed:   {TicketStatusOpen},
}

// IsValidTransition reports whether moving from current to next is legal.
func IsValidTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
