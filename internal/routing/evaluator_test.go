package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func cond(field string, op domain.RuleOperator, value domain.ConditionValue) domain.RuleCondition {
	return domain.RuleCondition{Field: field, Operator: op, Value: value}
}

func TestEvaluateEquals(t *testing.T) {
	view := map[string]any{"priority": "urgent", "attempts": 3}

	assert.True(t, Evaluate(cond("priority", domain.OperatorEquals, domain.StringValue("urgent")), view))
	assert.False(t, Evaluate(cond("priority", domain.OperatorEquals, domain.StringValue("Urgent")), view), "string match is case-sensitive")
	assert.True(t, Evaluate(cond("attempts", domain.OperatorEquals, domain.NumberValue(3)), view))
	assert.False(t, Evaluate(cond("attempts", domain.OperatorEquals, domain.NumberValue(4)), view))
}

func TestEvaluateAbsenceSemantics(t *testing.T) {
	view := map[string]any{"title": "printer broken"}

	assert.False(t, Evaluate(cond("region", domain.OperatorEquals, domain.StringValue("eu")), view))
	assert.True(t, Evaluate(cond("region", domain.OperatorNotEquals, domain.StringValue("eu")), view))
	assert.False(t, Evaluate(cond("tags", domain.OperatorContains, domain.StringValue("vip")), view))
	assert.True(t, Evaluate(cond("tags", domain.OperatorNotContains, domain.StringValue("vip")), view))
	assert.False(t, Evaluate(cond("confidence", domain.OperatorGreaterThan, domain.NumberValue(0.5)), view))
}

func TestEvaluateContains(t *testing.T) {
	view := map[string]any{
		"description": "cannot log in to billing portal",
		"tags":        []string{"billing", "login"},
		"expertise":   []any{"payments", "auth"},
	}

	assert.True(t, Evaluate(cond("description", domain.OperatorContains, domain.StringValue("billing")), view))
	assert.False(t, Evaluate(cond("description", domain.OperatorContains, domain.StringValue("refund")), view))
	assert.True(t, Evaluate(cond("tags", domain.OperatorContains, domain.StringValue("billing")), view))
	assert.False(t, Evaluate(cond("tags", domain.OperatorContains, domain.StringValue("vip")), view))
	assert.True(t, Evaluate(cond("tags", domain.OperatorNotContains, domain.StringValue("vip")), view))
	assert.True(t, Evaluate(cond("expertise", domain.OperatorContains, domain.StringValue("auth")), view))
	assert.True(t, Evaluate(cond("tags", domain.OperatorContains, domain.StringArrayValue("billing", "login")), view))
	assert.False(t, Evaluate(cond("tags", domain.OperatorContains, domain.StringArrayValue("billing", "vip")), view))
}

func TestEvaluateNumericComparisons(t *testing.T) {
	view := map[string]any{
		"confidence": 0.92,
		"retries":    "4",
		"plan":       "gold",
	}

	assert.True(t, Evaluate(cond("confidence", domain.OperatorGreaterThan, domain.NumberValue(0.8)), view))
	assert.False(t, Evaluate(cond("confidence", domain.OperatorLessThan, domain.NumberValue(0.8)), view))
	assert.True(t, Evaluate(cond("confidence", domain.OperatorGreaterOrEqual, domain.NumberValue(0.92)), view))
	assert.True(t, Evaluate(cond("confidence", domain.OperatorLessOrEqual, domain.NumberValue(0.92)), view))
	assert.True(t, Evaluate(cond("retries", domain.OperatorGreaterThan, domain.NumberValue(3)), view), "numeric strings coerce")
	assert.False(t, Evaluate(cond("plan", domain.OperatorGreaterThan, domain.NumberValue(1)), view), "non-numeric value resolves false, not an error")
}

func TestEvaluateTypedTicketValues(t *testing.T) {
	view := map[string]any{
		"priority": domain.TicketPriorityHigh,
		"source":   domain.TicketSourceChat,
	}

	assert.True(t, Evaluate(cond("priority", domain.OperatorEquals, domain.StringValue("high")), view))
	assert.True(t, Evaluate(cond("source", domain.OperatorEquals, domain.StringValue("chat")), view))
}
