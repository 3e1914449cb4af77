package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RuleOperator enumerates condition operators.
type RuleOperator string

const (
	OperatorEquals         RuleOperator = "equals"
	OperatorNotEquals      RuleOperator = "not_equals"
	OperatorContains       RuleOperator = "contains"
	OperatorNotContains    RuleOperator = "not_contains"
	OperatorGreaterThan    RuleOperator = "greater_than"
	OperatorLessThan       RuleOperator = "less_than"
	OperatorGreaterOrEqual RuleOperator = "greater_or_equal"
	OperatorLessOrEqual    RuleOperator = "less_or_equal"
)

// RuleAction enumerates routing outcomes.
type RuleAction string

const (
	ActionAssignTeam  RuleAction = "assign_team"
	ActionAssignAgent RuleAction = "assign_agent"
)

// ValueKind tags the variant stored in a ConditionValue.
type ValueKind string

const (
	ValueKindString      ValueKind = "string"
	ValueKindNumber      ValueKind = "number"
	ValueKindStringArray ValueKind = "string_array"
)

// ConditionValue is a tagged variant for condition operands. The variant is
// fixed when a rule is saved so the evaluator never type-sniffs at runtime.
type ConditionValue struct {
	Kind ValueKind
	Str  string
	Num  float64
	List []string
}

// StringValue builds a string operand.
func StringValue(s string) ConditionValue {
	return ConditionValue{Kind: ValueKindString, Str: s}
}

// NumberValue builds a numeric operand.
func NumberValue(n float64) ConditionValue {
	return ConditionValue{Kind: ValueKindNumber, Num: n}
}

// StringArrayValue builds an array operand.
func StringArrayValue(items ...string) ConditionValue {
	return ConditionValue{Kind: ValueKindStringArray, List: items}
}

// MarshalJSON emits the raw operand without the kind tag.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueKindNumber:
		return json.Marshal(v.Num)
	case ValueKindStringArray:
		return json.Marshal(v.List)
	default:
		return json.Marshal(v.Str)
	}
}

// UnmarshalJSON restores the variant from the raw JSON shape.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*v = StringValue(str)
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = NumberValue(num)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = StringArrayValue(list...)
		return nil
	}
	return fmt.Errorf("condition value must be string, number or string array")
}

// RuleCondition is a single field/operator/value test.
type RuleCondition struct {
	Field    string         `json:"field"`
	Operator RuleOperator   `json:"operator"`
	Value    ConditionValue `json:"value"`
}

// RoutingRule is a priority-ordered, condition-gated routing instruction.
// Lower priority values evaluate first; ties break on creation order.
type RoutingRule struct {
	ID           string
	Name         string
	Description  string
	Priority     int
	Conditions   []RuleCondition
	Action       RuleAction
	ActionTarget string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var scalarOperators = []RuleOperator{OperatorEquals, OperatorNotEquals}

var stringOperators = []RuleOperator{
	OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains,
}

var numberOperators = []RuleOperator{
	OperatorEquals, OperatorNotEquals,
	OperatorGreaterThan, OperatorLessThan, OperatorGreaterOrEqual, OperatorLessOrEqual,
}

var arrayOperators = []RuleOperator{OperatorContains, OperatorNotContains}

// ruleFields is the closed set of native ticket attributes addressable by
// rule conditions, mapped to their legal operators. Fields outside this set
// address custom fields and derive legal operators from the operand kind.
var ruleFields = map[string][]RuleOperator{
	"title":       stringOperators,
	"description": stringOperators,
	"source":      scalarOperators,
	"priority":    scalarOperators,
	"category":    scalarOperators,
	"complexity":  scalarOperators,
	"tags":        arrayOperators,
	"expertise":   arrayOperators,
	"confidence":  numberOperators,
}

// Validate enforces the rule invariants checked at authoring time: at least
// one condition and a legal field/operator/value combination per condition.
// Action-target existence is the caller's concern (directory lookup).
func (r *RoutingRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name required")
	}
	if r.Action != ActionAssignTeam && r.Action != ActionAssignAgent {
		return fmt.Errorf("unknown rule action %q", r.Action)
	}
	if r.ActionTarget == "" {
		return fmt.Errorf("rule action target required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule must have at least one condition")
	}
	for i, cond := range r.Conditions {
		if err := cond.validate(); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}
	return nil
}

func (c RuleCondition) validate() error {
	if c.Field == "" {
		return fmt.Errorf("field required")
	}
	legal, known := ruleFields[c.Field]
	if !known {
		legal = operatorsForKind(c.Value.Kind)
	}
	if !operatorIn(c.Operator, legal) {
		return fmt.Errorf("operator %q not allowed for field %q", c.Operator, c.Field)
	}
	switch c.Field {
	case "tags", "expertise":
		if c.Value.Kind == ValueKindNumber {
			return fmt.Errorf("field %q requires a string or string array value", c.Field)
		}
	case "confidence":
		if c.Value.Kind != ValueKindNumber {
			return fmt.Errorf("field %q requires a numeric value", c.Field)
		}
	case "priority":
		if !IsValidPriority(TicketPriority(c.Value.Str)) {
			return fmt.Errorf("field priority requires one of low, medium, high, urgent")
		}
	}
	return nil
}

func operatorsForKind(kind ValueKind) []RuleOperator {
	switch kind {
	case ValueKindNumber:
		return numberOperators
	case ValueKindStringArray:
		return arrayOperators
	default:
		return stringOperators
	}
}

func operatorIn(op RuleOperator, legal []RuleOperator) bool {
	for _, candidate := range legal {
		if candidate == op {
			return true
		}
	}
	return false
}
