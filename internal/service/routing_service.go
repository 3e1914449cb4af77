package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const ruleCacheKey = "routing:rules:active"

// RoutingService owns routing rule administration and the application of a
// matched rule to a ticket. Rule reads for evaluation go through a short-TTL
// Redis snapshot cache that is invalidated on every rule mutation; Postgres
// remains the source of truth and any cache failure falls back to it.
type RoutingService struct {
	rules      repository.RoutingRuleRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	agents     repository.AgentRepository
	teams      repository.TeamRepository
	cache      *redis.Client
	cacheTTL   time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// RoutingDependencies bundles collaborators for the routing service.
type RoutingDependencies struct {
	RuleRepo    repository.RoutingRuleRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	AgentRepo   repository.AgentRepository
	TeamRepo    repository.TeamRepository
	Cache       *redis.Client
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewRoutingService constructs the service.
func NewRoutingService(cfg config.RoutingConfig, deps RoutingDependencies) *RoutingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{
		rules:      deps.RuleRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		agents:     deps.AgentRepo,
		teams:      deps.TeamRepo,
		cache:      deps.Cache,
		cacheTTL:   cfg.RuleCacheTTL(),
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateRule validates and persists a new routing rule.
func (s *RoutingService) CreateRule(ctx context.Context, rule *domain.RoutingRule) error {
	if err := rule.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if err := s.resolveActionTarget(ctx, rule); err != nil {
		return err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return apperrors.MapError(err)
	}
	s.invalidateRuleCache(ctx)
	return nil
}

// UpdateRule validates and replaces an existing rule definition.
func (s *RoutingService) UpdateRule(ctx context.Context, rule *domain.RoutingRule) error {
	if err := rule.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if err := s.resolveActionTarget(ctx, rule); err != nil {
		return err
	}
	if err := s.rules.Update(ctx, rule); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("routing rule", map[string]any{"rule_id": rule.ID})
		}
		return apperrors.MapError(err)
	}
	s.invalidateRuleCache(ctx)
	return nil
}

// ToggleRule flips a rule's active flag.
func (s *RoutingService) ToggleRule(ctx context.Context, id string, active bool) (*domain.RoutingRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("routing rule", map[string]any{"rule_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	if rule.IsActive == active {
		return rule, nil
	}
	rule.IsActive = active
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.invalidateRuleCache(ctx)
	return rule, nil
}

// DeleteRule removes a rule permanently.
func (s *RoutingService) DeleteRule(ctx context.Context, id string) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("routing rule", map[string]any{"rule_id": id})
		}
		return apperrors.MapError(err)
	}
	s.invalidateRuleCache(ctx)
	return nil
}

// GetRule fetches a single rule.
func (s *RoutingService) GetRule(ctx context.Context, id string) (*domain.RoutingRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("routing rule", map[string]any{"rule_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return rule, nil
}

// ListRules returns every rule ordered by priority.
func (s *RoutingService) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rules, err := s.rules.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return rules, nil
}

// ActiveRules returns the current active rule snapshot for evaluation.
func (s *RoutingService) ActiveRules(ctx context.Context) ([]domain.RoutingRule, error) {
	if cached, ok := s.readRuleCache(ctx); ok {
		return cached, nil
	}
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.writeRuleCache(ctx, rules)
	return rules, nil
}

// Apply executes a matched rule against a ticket: assign the target, move
// status to open, persist, then append a route history entry and publish the
// routed event. Reapplying the same rule is a no-op mutation but still
// appends a fresh history entry; history is a log of routing attempts, not a
// dedup log.
func (s *RoutingService) Apply(ctx context.Context, rule *domain.RoutingRule, ticket *domain.Ticket) error {
	oldStatus := ticket.Status
	oldTeam := ticket.TeamID
	oldAgent := ticket.AssignedAgentID

	oldValue := map[string]any{"status": oldStatus}
	newValue := map[string]any{"rule_id": rule.ID, "rule_name": rule.Name, "status": domain.TicketStatusOpen}

	switch rule.Action {
	case domain.ActionAssignTeam:
		target := rule.ActionTarget
		ticket.TeamID = &target
		oldValue["team_id"] = oldTeam
		newValue["team_id"] = target
	case domain.ActionAssignAgent:
		agent, err := s.agents.GetByID(ctx, rule.ActionTarget)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("agent", map[string]any{"agent_id": rule.ActionTarget})
			}
			return apperrors.MapError(err)
		}
		ticket.AssignedAgentID = &agent.ID
		oldValue["assigned_agent_id"] = oldAgent
		newValue["assigned_agent_id"] = agent.ID
		// Keep team_id consistent with the assignee's team.
		if agent.TeamID != nil && (ticket.TeamID == nil || *ticket.TeamID != *agent.TeamID) {
			ticket.TeamID = agent.TeamID
			oldValue["team_id"] = oldTeam
			newValue["team_id"] = *agent.TeamID
		}
	default:
		return apperrors.NewValidationError("unknown rule action", map[string]any{"action": rule.Action})
	}

	ticket.Status = domain.TicketStatusOpen
	if err := s.tickets.Update(ctx, ticket); err != nil {
		ticket.Status = oldStatus
		ticket.TeamID = oldTeam
		ticket.AssignedAgentID = oldAgent
		return apperrors.MapError(err)
	}

	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		ActorID:  nil,
		Action:   domain.HistoryActionRoute,
		OldValue: oldValue,
		NewValue: newValue,
	})

	s.publish(ctx, events.Event{
		Type:     events.EventTicketRouted,
		TicketID: ticket.ID,
		Payload: events.TicketRoutedPayload{
			RuleID:          rule.ID,
			RuleName:        rule.Name,
			TeamID:          ticket.TeamID,
			AssignedAgentID: ticket.AssignedAgentID,
		},
	})
	return nil
}

// resolveActionTarget checks the action target against the directory at
// authoring time; evaluation trusts stored rules.
func (s *RoutingService) resolveActionTarget(ctx context.Context, rule *domain.RoutingRule) error {
	switch rule.Action {
	case domain.ActionAssignTeam:
		team, err := s.teams.GetByID(ctx, rule.ActionTarget)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("action target team does not exist", map[string]any{"team_id": rule.ActionTarget})
			}
			return apperrors.MapError(err)
		}
		if !team.IsActive {
			return apperrors.NewConflict("action target team inactive", map[string]any{"team_id": team.ID})
		}
	case domain.ActionAssignAgent:
		agent, err := s.agents.GetByID(ctx, rule.ActionTarget)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewValidationError("action target agent does not exist", map[string]any{"agent_id": rule.ActionTarget})
			}
			return apperrors.MapError(err)
		}
		if !agent.Active {
			return apperrors.NewConflict("action target agent inactive", map[string]any{"agent_id": agent.ID})
		}
	}
	return nil
}

func (s *RoutingService) readRuleCache(ctx context.Context) ([]domain.RoutingRule, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, ruleCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("rule cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var rules []domain.RoutingRule
	if err := json.Unmarshal(raw, &rules); err != nil {
		s.logger.Warn("rule cache payload corrupt; dropping", zap.Error(err))
		s.invalidateRuleCache(ctx)
		return nil, false
	}
	return rules, true
}

func (s *RoutingService) writeRuleCache(ctx context.Context, rules []domain.RoutingRule) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(rules)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, ruleCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("rule cache write failed", zap.Error(err))
	}
}

func (s *RoutingService) invalidateRuleCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, ruleCacheKey).Err(); err != nil {
		s.logger.Debug("rule cache invalidation failed", zap.Error(err))
	}
}

// appendHistory is best-effort: a failed append is logged and never rolls
// back the mutation it documents.
func (s *RoutingService) appendHistory(ctx context.Context, entry *domain.TicketHistory) {
	if s.history == nil {
		return
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error("history append failed",
			zap.String("ticket_id", entry.TicketID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *RoutingService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
