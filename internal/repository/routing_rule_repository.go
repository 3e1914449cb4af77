package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// RoutingRuleRepository manages persistence for routing rules.
type RoutingRuleRepository interface {
	Create(ctx context.Context, rule *domain.RoutingRule) error
	Update(ctx context.Context, rule *domain.RoutingRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.RoutingRule, error)
	List(ctx context.Context) ([]domain.RoutingRule, error)
	ListActive(ctx context.Context) ([]domain.RoutingRule, error)
}

type routingRuleRepository struct {
	pool *pgxpool.Pool
}

// NewRoutingRuleRepository constructs repository.
func NewRoutingRuleRepository(pool *pgxpool.Pool) RoutingRuleRepository {
	return &routingRuleRepository{pool: pool}
}

func (r *routingRuleRepository) Create(ctx context.Context, rule *domain.RoutingRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	const query = `
        INSERT INTO routing_rules (name, description, priority, conditions, action, action_target, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.Description,
		rule.Priority,
		conditions,
		rule.Action,
		rule.ActionTarget,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (r *routingRuleRepository) Update(ctx context.Context, rule *domain.RoutingRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	const query = `
        UPDATE routing_rules SET name=$1, description=$2, priority=$3, conditions=$4,
            action=$5, action_target=$6, is_active=$7, updated_at=NOW()
        WHERE id=$8`
	cmd, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.Description,
		rule.Priority,
		conditions,
		rule.Action,
		rule.ActionTarget,
		rule.IsActive,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes a rule permanently; there is no soft-delete for rules.
func (r *routingRuleRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM routing_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *routingRuleRepository) GetByID(ctx context.Context, id string) (*domain.RoutingRule, error) {
	const query = `
        SELECT id, name, description, priority, conditions, action, action_target, is_active, created_at, updated_at
        FROM routing_rules WHERE id=$1`
	var rule domain.RoutingRule
	var conditions []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.Priority,
		&conditions,
		&rule.Action,
		&rule.ActionTarget,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return &rule, nil
}

func (r *routingRuleRepository) List(ctx context.Context) ([]domain.RoutingRule, error) {
	return r.list(ctx, `
        SELECT id, name, description, priority, conditions, action, action_target, is_active, created_at, updated_at
        FROM routing_rules ORDER BY priority ASC, created_at ASC`)
}

// ListActive returns active rules ordered by priority with creation order as
// tie-break, matching the matcher's evaluation order.
func (r *routingRuleRepository) ListActive(ctx context.Context) ([]domain.RoutingRule, error) {
	return r.list(ctx, `
        SELECT id, name, description, priority, conditions, action, action_target, is_active, created_at, updated_at
        FROM routing_rules WHERE is_active=TRUE ORDER BY priority ASC, created_at ASC`)
}

func (r *routingRuleRepository) list(ctx context.Context, query string) ([]domain.RoutingRule, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RoutingRule
	for rows.Next() {
		var rule domain.RoutingRule
		var conditions []byte
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Description,
			&rule.Priority,
			&conditions,
			&rule.Action,
			&rule.ActionTarget,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions for rule %s: %w", rule.ID, err)
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
