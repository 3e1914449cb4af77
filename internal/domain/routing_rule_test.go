package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule() RoutingRule {
	return RoutingRule{
		Name:         "urgent to escalations",
		Priority:     10,
		Action:       ActionAssignTeam,
		ActionTarget: "team-1",
		IsActive:     true,
		Conditions: []RuleCondition{
			{Field: "priority", Operator: OperatorEquals, Value: StringValue("urgent")},
		},
	}
}

func TestRuleValidateAcceptsLegalRule(t *testing.T) {
	rule := validRule()
	assert.NoError(t, rule.Validate())
}

func TestRuleValidateRejectsEmptyConditions(t *testing.T) {
	rule := validRule()
	rule.Conditions = nil
	assert.Error(t, rule.Validate())
}

func TestRuleValidateRejectsIllegalOperatorForField(t *testing.T) {
	rule := validRule()
	rule.Conditions = []RuleCondition{
		{Field: "tags", Operator: OperatorEquals, Value: StringValue("vip")},
	}
	assert.Error(t, rule.Validate(), "tags only supports contains/not_contains")

	rule.Conditions = []RuleCondition{
		{Field: "priority", Operator: OperatorContains, Value: StringValue("urg")},
	}
	assert.Error(t, rule.Validate(), "priority is a scalar equality field")

	rule.Conditions = []RuleCondition{
		{Field: "title", Operator: OperatorGreaterThan, Value: NumberValue(5)},
	}
	assert.Error(t, rule.Validate())
}

func TestRuleValidateRejectsValueKindMismatch(t *testing.T) {
	rule := validRule()
	rule.Conditions = []RuleCondition{
		{Field: "confidence", Operator: OperatorGreaterThan, Value: StringValue("high")},
	}
	assert.Error(t, rule.Validate())

	rule.Conditions = []RuleCondition{
		{Field: "priority", Operator: OperatorEquals, Value: StringValue("sev1")},
	}
	assert.Error(t, rule.Validate(), "priority operand must be a member of the enum")
}

func TestRuleValidateCustomFieldOperatorsFollowValueKind(t *testing.T) {
	rule := validRule()
	rule.Conditions = []RuleCondition{
		{Field: "plan", Operator: OperatorEquals, Value: StringValue("gold")},
		{Field: "seats", Operator: OperatorGreaterThan, Value: NumberValue(50)},
		{Field: "regions", Operator: OperatorContains, Value: StringArrayValue("eu")},
	}
	assert.NoError(t, rule.Validate())

	rule.Conditions = []RuleCondition{
		{Field: "seats", Operator: OperatorContains, Value: NumberValue(50)},
	}
	assert.Error(t, rule.Validate(), "contains is not defined for numeric operands")
}

func TestRuleValidateRejectsBadAction(t *testing.T) {
	rule := validRule()
	rule.Action = "assign_department"
	assert.Error(t, rule.Validate())

	rule = validRule()
	rule.ActionTarget = ""
	assert.Error(t, rule.Validate())
}

func TestConditionValueJSONRoundTrip(t *testing.T) {
	cases := []ConditionValue{
		StringValue("urgent"),
		NumberValue(0.8),
		StringArrayValue("billing", "vip"),
	}
	for _, original := range cases {
		data, err := json.Marshal(original)
		require.NoError(t, err)

		var decoded ConditionValue
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, original.Kind, decoded.Kind)
		assert.Equal(t, original, decoded)
	}

	var invalid ConditionValue
	assert.Error(t, json.Unmarshal([]byte(`{"nested":true}`), &invalid))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, IsValidTransition(TicketStatusNew, TicketStatusOpen))
	assert.True(t, IsValidTransition(TicketStatusNew, TicketStatusResolved))
	assert.True(t, IsValidTransition(TicketStatusOpen, TicketStatusPending))
	assert.True(t, IsValidTransition(TicketStatusPending, TicketStatusOpen))
	assert.True(t, IsValidTransition(TicketStatusResolved, TicketStatusOpen), "manual reopen")
	assert.True(t, IsValidTransition(TicketStatusClosed, TicketStatusOpen), "manual reopen")

	assert.False(t, IsValidTransition(TicketStatusNew, TicketStatusPending))
	assert.False(t, IsValidTransition(TicketStatusClosed, TicketStatusPending))
	assert.False(t, IsValidTransition(TicketStatusNew, TicketStatusClosed))
}
