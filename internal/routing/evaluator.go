package routing

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Evaluate tests a single rule condition against a flattened ticket view.
// It is pure and never fails: soft errors (missing field, non-numeric value
// where a number is expected) resolve to false so a rule simply does not
// match. Absence semantics: a missing field is "not equal to" and "not
// containing" anything, so negative operators evaluate true.
func Evaluate(cond domain.RuleCondition, view map[string]any) bool {
	value, present := view[cond.Field]

	switch cond.Operator {
	case domain.OperatorEquals:
		return present && equals(cond.Value, value)
	case domain.OperatorNotEquals:
		return !present || !equals(cond.Value, value)
	case domain.OperatorContains:
		return present && contains(cond.Value, value)
	case domain.OperatorNotContains:
		return !present || !contains(cond.Value, value)
	case domain.OperatorGreaterThan:
		return present && compare(cond.Value, value, func(a, b float64) bool { return a > b })
	case domain.OperatorLessThan:
		return present && compare(cond.Value, value, func(a, b float64) bool { return a < b })
	case domain.OperatorGreaterOrEqual:
		return present && compare(cond.Value, value, func(a, b float64) bool { return a >= b })
	case domain.OperatorLessOrEqual:
		return present && compare(cond.Value, value, func(a, b float64) bool { return a <= b })
	}
	return false
}

func equals(operand domain.ConditionValue, value any) bool {
	if operand.Kind == domain.ValueKindNumber {
		num, ok := toFloat(value)
		return ok && num == operand.Num
	}
	str, ok := toString(value)
	return ok && str == operand.Str
}

// contains is a substring test for string fields and a membership test for
// array fields. An array operand requires every element to be present.
func contains(operand domain.ConditionValue, value any) bool {
	needles := operand.List
	if operand.Kind != domain.ValueKindStringArray {
		needles = []string{operand.Str}
	}
	if len(needles) == 0 {
		return false
	}

	switch haystack := value.(type) {
	case string:
		for _, needle := range needles {
			if !strings.Contains(haystack, needle) {
				return false
			}
		}
		return true
	default:
		items, ok := toStringSlice(value)
		if !ok {
			return false
		}
		for _, needle := range needles {
			if !sliceHas(items, needle) {
				return false
			}
		}
		return true
	}
}

func compare(operand domain.ConditionValue, value any, cmp func(a, b float64) bool) bool {
	if operand.Kind != domain.ValueKindNumber {
		return false
	}
	num, ok := toFloat(value)
	return ok && cmp(num, operand.Num)
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case domain.TicketPriority:
		return string(v), true
	case domain.TicketSource:
		return string(v), true
	case domain.TicketStatus:
		return string(v), true
	}
	return "", false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		return parsed, err == nil
	}
	return 0, false
}

func toStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := toString(item)
			if !ok {
				return nil, false
			}
			items = append(items, str)
		}
		return items, true
	}
	return nil, false
}

func sliceHas(items []string, needle string) bool {
	for _, item := range items {
		if item == needle {
			return true
		}
	}
	return false
}
