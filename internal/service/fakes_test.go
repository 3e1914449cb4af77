package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/classifier"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// In-memory repository fakes backing the service tests.

type fakeTicketRepo struct {
	mu         sync.Mutex
	seq        int
	tickets    map[string]*domain.Ticket
	failCreate error
	failUpdate error
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.seq++
	ticket.ID = fmt.Sprintf("ticket-%d", r.seq)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	clone := *ticket
	r.tickets[ticket.ID] = &clone
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (r *fakeTicketRepo) GetByExternalKey(_ context.Context, key string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ExternalKey == key {
			clone := *ticket
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListRecentByCustomer(_ context.Context, customerID string, limit int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.CustomerID == customerID {
			result = append(result, *ticket)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.CustomerID != nil && ticket.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Unassigned != nil && *filter.Unassigned &&
			(ticket.TeamID != nil || ticket.AssignedAgentID != nil) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func containsStatus(haystack []domain.TicketStatus, needle domain.TicketStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

type fakeHistoryRepo struct {
	mu         sync.Mutex
	seq        int
	entries    []domain.TicketHistory
	failCreate error
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.seq++
	entry.ID = fmt.Sprintf("history-%d", r.seq)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func (r *fakeHistoryRepo) byAction(ticketID string, action domain.HistoryAction) []domain.TicketHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketHistory
	for _, entry := range r.entries {
		if entry.TicketID == ticketID && entry.Action == action {
			result = append(result, entry)
		}
	}
	return result
}

type fakeResponseRepo struct {
	mu         sync.Mutex
	seq        int
	responses  []domain.TicketResponse
	failCreate error
}

func (r *fakeResponseRepo) Create(_ context.Context, response *domain.TicketResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	r.seq++
	response.ID = fmt.Sprintf("response-%d", r.seq)
	response.CreatedAt = time.Now()
	r.responses = append(r.responses, *response)
	return nil
}

func (r *fakeResponseRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.TicketResponse
	for _, response := range r.responses {
		if response.TicketID == ticketID {
			result = append(result, response)
		}
	}
	return result, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = fmt.Sprintf("user-%d", len(r.users)+1)
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeAgentRepo struct {
	agents map[string]*domain.Agent
}

func (r *fakeAgentRepo) Create(_ context.Context, agent *domain.Agent) error {
	agent.ID = fmt.Sprintf("agent-%d", len(r.agents)+1)
	r.agents[agent.ID] = agent
	return nil
}

func (r *fakeAgentRepo) Update(_ context.Context, agent *domain.Agent) error {
	if _, ok := r.agents[agent.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.agents[agent.ID] = agent
	return nil
}

func (r *fakeAgentRepo) GetByID(_ context.Context, id string) (*domain.Agent, error) {
	agent, ok := r.agents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return agent, nil
}

func (r *fakeAgentRepo) GetByEmail(_ context.Context, email string) (*domain.Agent, error) {
	for _, agent := range r.agents {
		if agent.Email == email {
			return agent, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAgentRepo) ListByTeam(_ context.Context, teamID string) ([]domain.Agent, error) {
	var result []domain.Agent
	for _, agent := range r.agents {
		if agent.TeamID != nil && *agent.TeamID == teamID && agent.Active {
			result = append(result, *agent)
		}
	}
	return result, nil
}

type fakeTeamRepo struct {
	teams map[string]*domain.Team
}

func (r *fakeTeamRepo) Create(_ context.Context, team *domain.Team) error {
	team.ID = fmt.Sprintf("team-%d", len(r.teams)+1)
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) Update(_ context.Context, team *domain.Team) error {
	if _, ok := r.teams[team.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.teams[team.ID] = team
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	team, ok := r.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return team, nil
}

func (r *fakeTeamRepo) ListActive(_ context.Context) ([]domain.Team, error) {
	var result []domain.Team
	for _, team := range r.teams {
		if team.IsActive {
			result = append(result, *team)
		}
	}
	return result, nil
}

type fakeRuleRepo struct {
	mu       sync.Mutex
	seq      int
	rules    []domain.RoutingRule
	failList error
}

func (r *fakeRuleRepo) Create(_ context.Context, rule *domain.RoutingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rule.ID = fmt.Sprintf("rule-%d", r.seq)
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	r.rules = append(r.rules, *rule)
	return nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *domain.RoutingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == rule.ID {
			rule.CreatedAt = r.rules[i].CreatedAt
			rule.UpdatedAt = time.Now()
			r.rules[i] = *rule
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeRuleRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeRuleRepo) GetByID(_ context.Context, id string) (*domain.RoutingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rules {
		if r.rules[i].ID == id {
			clone := r.rules[i]
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRuleRepo) List(_ context.Context) ([]domain.RoutingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedRules(r.rules), nil
}

func (r *fakeRuleRepo) ListActive(_ context.Context) ([]domain.RoutingRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	var active []domain.RoutingRule
	for _, rule := range r.rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	return sortedRules(active), nil
}

func sortedRules(rules []domain.RoutingRule) []domain.RoutingRule {
	out := append([]domain.RoutingRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// stubClassifier returns a fixed analysis or error.
type stubClassifier struct {
	analysis *domain.AIAnalysis
	err      error
	calls    int
}

func (c *stubClassifier) Analyze(_ context.Context, _ classifier.Request) (*domain.AIAnalysis, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	clone := *c.analysis
	return &clone, nil
}
