package routing

import (
	"sort"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// Match returns the first active rule whose conditions all hold against the
// ticket view, or nil when nothing matches. Rules are evaluated ascending by
// priority; equal priorities keep their incoming (creation) order via the
// stable sort, which is the documented tie-break. Evaluation is
// first-match-wins: later rules are not inspected once one matches.
func Match(rules []domain.RoutingRule, view map[string]any) *domain.RoutingRule {
	candidates := make([]domain.RoutingRule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			candidates = append(candidates, rule)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	for i := range candidates {
		if matches(&candidates[i], view) {
			return &candidates[i]
		}
	}
	return nil
}

// matches requires every condition to hold (logical AND). A rule without
// conditions never matches; authoring validation rejects those, but stored
// rules are not re-validated here.
func matches(rule *domain.RoutingRule, view map[string]any) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !Evaluate(cond, view) {
			return false
		}
	}
	return true
}
