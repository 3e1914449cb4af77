package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func rule(id string, priority int, active bool, conditions ...domain.RuleCondition) domain.RoutingRule {
	return domain.RoutingRule{
		ID:           id,
		Name:         id,
		Priority:     priority,
		Conditions:   conditions,
		Action:       domain.ActionAssignTeam,
		ActionTarget: "team-" + id,
		IsActive:     active,
	}
}

func TestMatchLowestPriorityWins(t *testing.T) {
	rules := []domain.RoutingRule{
		rule("r2", 20, true, cond("source", domain.OperatorEquals, domain.StringValue("chat"))),
		rule("r1", 10, true, cond("priority", domain.OperatorEquals, domain.StringValue("urgent"))),
	}
	view := map[string]any{"priority": "urgent", "source": "chat"}

	matched := Match(rules, view)
	require.NotNil(t, matched)
	assert.Equal(t, "r1", matched.ID)
}

func TestMatchFallsThroughToNextRule(t *testing.T) {
	rules := []domain.RoutingRule{
		rule("r1", 10, true, cond("priority", domain.OperatorEquals, domain.StringValue("urgent"))),
		rule("r2", 20, true, cond("source", domain.OperatorEquals, domain.StringValue("chat"))),
	}
	view := map[string]any{"priority": "high", "source": "chat"}

	matched := Match(rules, view)
	require.NotNil(t, matched)
	assert.Equal(t, "r2", matched.ID)
}

func TestMatchNoRuleMatches(t *testing.T) {
	rules := []domain.RoutingRule{
		rule("r1", 10, true, cond("priority", domain.OperatorEquals, domain.StringValue("urgent"))),
		rule("r2", 20, true, cond("source", domain.OperatorEquals, domain.StringValue("chat"))),
	}
	view := map[string]any{"priority": "high", "source": "web"}

	assert.Nil(t, Match(rules, view))
}

func TestMatchAllConditionsRequired(t *testing.T) {
	both := rule("both", 5, true,
		cond("priority", domain.OperatorEquals, domain.StringValue("urgent")),
		cond("source", domain.OperatorEquals, domain.StringValue("chat")),
	)
	single := rule("single", 10, true, cond("priority", domain.OperatorEquals, domain.StringValue("urgent")))
	view := map[string]any{"priority": "urgent", "source": "web"}

	matched := Match([]domain.RoutingRule{both, single}, view)
	require.NotNil(t, matched, "a partial match on [A,B] must not block the single-condition rule")
	assert.Equal(t, "single", matched.ID)
}

func TestMatchSkipsInactiveRules(t *testing.T) {
	first := rule("first", 1, false, cond("source", domain.OperatorEquals, domain.StringValue("chat")))
	second := rule("second", 2, true, cond("source", domain.OperatorEquals, domain.StringValue("chat")))
	view := map[string]any{"source": "chat"}

	matched := Match([]domain.RoutingRule{first, second}, view)
	require.NotNil(t, matched)
	assert.Equal(t, "second", matched.ID)
}

func TestMatchTieBreaksOnInsertionOrder(t *testing.T) {
	older := rule("older", 10, true, cond("source", domain.OperatorEquals, domain.StringValue("chat")))
	newer := rule("newer", 10, true, cond("source", domain.OperatorEquals, domain.StringValue("chat")))
	view := map[string]any{"source": "chat"}

	matched := Match([]domain.RoutingRule{older, newer}, view)
	require.NotNil(t, matched)
	assert.Equal(t, "older", matched.ID)
}

func TestMatchIgnoresRuleWithoutConditions(t *testing.T) {
	empty := rule("empty", 1, true)
	fallback := rule("fallback", 2, true, cond("source", domain.OperatorEquals, domain.StringValue("chat")))
	view := map[string]any{"source": "chat"}

	matched := Match([]domain.RoutingRule{empty, fallback}, view)
	require.NotNil(t, matched)
	assert.Equal(t, "fallback", matched.ID)
}

func TestBuildPayloadMergesAnalysis(t *testing.T) {
	ticket := &domain.Ticket{
		Title:        "payment failed",
		Description:  "card declined at checkout",
		Source:       domain.TicketSourceWeb,
		Status:       domain.TicketStatusNew,
		Priority:     domain.TicketPriorityLow,
		CustomerID:   "cust-1",
		Tags:         []string{"billing"},
		CustomFields: map[string]any{"plan": "gold", "title": "should lose"},
	}
	analysis := &domain.AIAnalysis{
		Confidence: 0.7,
		Routing: domain.RoutingAnalysis{
			Priority:   domain.TicketPriorityHigh,
			Category:   "payments",
			Tags:       []string{"billing", "checkout"},
			Complexity: "medium",
			Expertise:  []string{"payments"},
		},
	}

	view := BuildPayload(ticket, analysis)

	assert.Equal(t, "payment failed", view["title"], "native fields win over custom field collisions")
	assert.Equal(t, "gold", view["plan"])
	assert.Equal(t, "high", view["priority"], "classifier priority overrides for routing only")
	assert.Equal(t, "payments", view["category"])
	assert.Equal(t, 0.7, view["confidence"])
	assert.ElementsMatch(t, []string{"billing", "checkout"}, view["tags"])
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority, "the ticket itself keeps the submitted priority")
}

func TestBuildPayloadWithoutAnalysis(t *testing.T) {
	ticket := &domain.Ticket{
		Title:      "hello",
		Source:     domain.TicketSourceChat,
		Status:     domain.TicketStatusNew,
		Priority:   domain.TicketPriorityMedium,
		CustomerID: "cust-2",
		Tags:       []string{"general"},
	}

	view := BuildPayload(ticket, nil)

	assert.Equal(t, "medium", view["priority"])
	assert.Equal(t, "chat", view["source"])
	assert.Equal(t, []string{"general"}, view["tags"])
	_, hasCategory := view["category"]
	assert.False(t, hasCategory)
}
