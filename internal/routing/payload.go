package routing

import "github.com/spec-kit/helpdesk/internal/domain"

// BuildPayload flattens a ticket into the read-only view rule conditions
// evaluate against. Custom fields and metadata merge at the top level;
// native columns take precedence on name collision. When a classifier
// analysis is supplied its routing guidance is merged in: the suggested
// priority overrides the submitted one for routing purposes only, and
// classifier tags union with the ticket's own.
func BuildPayload(ticket *domain.Ticket, analysis *domain.AIAnalysis) map[string]any {
	view := make(map[string]any, len(ticket.CustomFields)+len(ticket.Metadata)+12)
	for key, value := range ticket.CustomFields {
		view[key] = value
	}
	for key, value := range ticket.Metadata {
		view[key] = value
	}

	view["title"] = ticket.Title
	view["description"] = ticket.Description
	view["source"] = string(ticket.Source)
	view["status"] = string(ticket.Status)
	view["priority"] = string(ticket.Priority)
	view["customer_id"] = ticket.CustomerID
	tags := append([]string(nil), ticket.Tags...)

	if analysis != nil {
		if domain.IsValidPriority(analysis.Routing.Priority) {
			view["priority"] = string(analysis.Routing.Priority)
		}
		if analysis.Routing.Category != "" {
			view["category"] = analysis.Routing.Category
		}
		if analysis.Routing.Complexity != "" {
			view["complexity"] = analysis.Routing.Complexity
		}
		if len(analysis.Routing.Expertise) > 0 {
			view["expertise"] = analysis.Routing.Expertise
		}
		view["confidence"] = analysis.Confidence
		for _, tag := range analysis.Routing.Tags {
			if !sliceHas(tags, tag) {
				tags = append(tags, tag)
			}
		}
	}

	view["tags"] = tags
	return view
}
