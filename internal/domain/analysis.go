package domain

// RoutingAnalysis is the classifier's routing guidance for a ticket.
type RoutingAnalysis struct {
	Priority   TicketPriority `json:"priority"`
	Category   string         `json:"category"`
	Tags       []string       `json:"tags"`
	Complexity string         `json:"complexity"`
	Expertise  []string       `json:"expertise"`
}

// AIAnalysis is the structured result of pre-classifying a ticket. It is
// transient: the engine embeds it into ticket metadata and history rather
// than persisting it as its own entity.
type AIAnalysis struct {
	CanAutoResolve bool            `json:"can_auto_resolve"`
	Confidence     float64         `json:"confidence"`
	Routing        RoutingAnalysis `json:"routing_analysis"`
	Response       string          `json:"response,omitempty"`
}
