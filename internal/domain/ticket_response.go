package domain

import "time"

// ResponseType indicates who authored a ticket response.
type ResponseType string

const (
	ResponseTypeCustomer ResponseType = "customer"
	ResponseTypeAgent    ResponseType = "agent"
	ResponseTypeAI       ResponseType = "ai"
)

// IsValidResponseType reports whether t is a known author kind.
func IsValidResponseType(t ResponseType) bool {
	switch t {
	case ResponseTypeCustomer, ResponseTypeAgent, ResponseTypeAI:
		return true
	}
	return false
}

// TicketResponse captures a reply on a ticket thread. AuthorID is nil for
// AI-generated responses.
type TicketResponse struct {
	ID        string
	TicketID  string
	AuthorID  *string
	Type      ResponseType
	Body      string
	CreatedAt time.Time
}
