package classifier

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Request is the payload handed to the classifier. CustomerHistory is
// best-effort context and may be empty.
type Request struct {
	Title           string
	Description     string
	Source          domain.TicketSource
	Priority        domain.TicketPriority
	Tags            []string
	CustomFields    map[string]any
	CustomerHistory []PastTicket
}

// PastTicket summarizes a customer's earlier ticket for classifier context.
type PastTicket struct {
	Title     string
	Status    domain.TicketStatus
	CreatedAt time.Time
}

// Classifier analyzes a new ticket ahead of routing. Implementations are
// opaque to the lifecycle controller: any error is treated as "could not
// classify" and the caller degrades to the submitted ticket fields.
type Classifier interface {
	Analyze(ctx context.Context, req Request) (*domain.AIAnalysis, error)
}

// Fallback is the degraded analysis used when classification fails: never
// auto-resolve, route on what the customer submitted.
func Fallback(req Request) *domain.AIAnalysis {
	return &domain.AIAnalysis{
		CanAutoResolve: false,
		Confidence:     0,
		Routing: domain.RoutingAnalysis{
			Priority: req.Priority,
			Tags:     req.Tags,
		},
	}
}
