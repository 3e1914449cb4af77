package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/classifier"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type harness struct {
	tickets   *fakeTicketRepo
	history   *fakeHistoryRepo
	responses *fakeResponseRepo
	users     *fakeUserRepo
	agents    *fakeAgentRepo
	teams     *fakeTeamRepo
	rules     *fakeRuleRepo
	metrics   *observability.Metrics
	routing   *RoutingService
	svc       *TicketService
	seen      map[events.EventType]int
}

func newHarness(t *testing.T, cls classifier.Classifier) *harness {
	t.Helper()

	chatTeam := "team-chat"
	h := &harness{
		tickets:   newFakeTicketRepo(),
		history:   &fakeHistoryRepo{},
		responses: &fakeResponseRepo{},
		users: &fakeUserRepo{users: map[string]*domain.User{
			"cust-1": {ID: "cust-1", Name: "Dana", Email: "dana@example.com", Status: domain.UserStatusActive},
		}},
		agents: &fakeAgentRepo{agents: map[string]*domain.Agent{
			"agent-7": {ID: "agent-7", Name: "Sam", Email: "sam@example.com", Role: domain.AgentRoleAgent, TeamID: &chatTeam, Active: true},
		}},
		teams: &fakeTeamRepo{teams: map[string]*domain.Team{
			"team-billing": {ID: "team-billing", Name: "Billing", IsActive: true},
			"team-chat":    {ID: "team-chat", Name: "Chat", IsActive: true},
		}},
		rules:   &fakeRuleRepo{},
		metrics: observability.NewMetrics(),
		seen:    map[events.EventType]int{},
	}

	dispatcher := events.NewInMemoryDispatcher()
	for _, eventType := range []events.EventType{
		events.EventTicketCreated, events.EventTicketRouted, events.EventTicketAutoResolved,
		events.EventTicketStatusChanged, events.EventTicketUpdated, events.EventTicketResponseAdded,
	} {
		et := eventType
		dispatcher.Subscribe(et, func(context.Context, events.Event) error {
			h.seen[et]++
			return nil
		})
	}

	h.routing = NewRoutingService(config.RoutingConfig{}, RoutingDependencies{
		RuleRepo:    h.rules,
		TicketRepo:  h.tickets,
		HistoryRepo: h.history,
		AgentRepo:   h.agents,
		TeamRepo:    h.teams,
		Dispatcher:  dispatcher,
		Logger:      zap.NewNop(),
	})
	h.svc = NewTicketService(config.RoutingConfig{HistoryLookback: 5}, TicketDependencies{
		TicketRepo:   h.tickets,
		HistoryRepo:  h.history,
		ResponseRepo: h.responses,
		UserRepo:     h.users,
		AgentRepo:    h.agents,
		TeamRepo:     h.teams,
		Classifier:   cls,
		Routing:      h.routing,
		Dispatcher:   dispatcher,
		Metrics:      h.metrics,
		Logger:       zap.NewNop(),
	})
	return h
}

// seedDefaultRules installs the two-rule setup used across lifecycle tests:
// urgent tickets go to billing first, chat tickets to a named agent second.
func (h *harness) seedDefaultRules(t *testing.T) {
	t.Helper()
	require.NoError(t, h.routing.CreateRule(context.Background(), &domain.RoutingRule{
		Name:     "urgent to billing",
		Priority: 1,
		IsActive: true,
		Conditions: []domain.RuleCondition{
			{Field: "priority", Operator: domain.OperatorEquals, Value: domain.StringValue("urgent")},
		},
		Action:       domain.ActionAssignTeam,
		ActionTarget: "team-billing",
	}))
	require.NoError(t, h.routing.CreateRule(context.Background(), &domain.RoutingRule{
		Name:     "chat to sam",
		Priority: 2,
		IsActive: true,
		Conditions: []domain.RuleCondition{
			{Field: "source", Operator: domain.OperatorEquals, Value: domain.StringValue("chat")},
		},
		Action:       domain.ActionAssignAgent,
		ActionTarget: "agent-7",
	}))
}

func TestCreateTicketRoutesByPriority(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID:  "cust-1",
		Title:       "Charged twice this month",
		Description: "My card was billed two times.",
		Source:      domain.TicketSourceWeb,
		Priority:    domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, "team-billing", *ticket.TeamID)
	assert.Nil(t, ticket.AssignedAgentID)

	routes := h.history.byAction(ticket.ID, domain.HistoryActionRoute)
	require.Len(t, routes, 1)
	assert.Equal(t, "rule-1", routes[0].NewValue["rule_id"])
	assert.Nil(t, routes[0].ActorID)
	assert.Len(t, h.history.byAction(ticket.ID, domain.HistoryActionCreate), 1)

	assert.Equal(t, int64(1), h.metrics.RoutingOutcomes()[observability.CounterRouted])
	assert.Equal(t, 1, h.seen[events.EventTicketRouted])
}

func TestCreateTicketRoutesChatToAgent(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Cannot open chat transcript",
		Source:     domain.TicketSourceChat,
		Priority:   domain.TicketPriorityMedium,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.AssignedAgentID)
	assert.Equal(t, "agent-7", *ticket.AssignedAgentID)
	// Assigning an agent carries the agent's team along.
	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, "team-chat", *ticket.TeamID)
}

func TestCreateTicketNoMatchStaysNew(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "General question",
		Source:     domain.TicketSourceEmail,
		Priority:   domain.TicketPriorityLow,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Nil(t, ticket.TeamID)
	assert.Nil(t, ticket.AssignedAgentID)
	assert.Empty(t, h.history.byAction(ticket.ID, domain.HistoryActionRoute))
	assert.Equal(t, int64(1), h.metrics.RoutingOutcomes()[observability.CounterUnrouted])
}

func TestCreateTicketFirstMatchWins(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)

	// Urgent AND chat: both rules match, the lower priority value wins.
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Billing issue via chat",
		Source:     domain.TicketSourceChat,
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, "team-billing", *ticket.TeamID)
	assert.Nil(t, ticket.AssignedAgentID)
}

func TestCreateTicketAutoResolve(t *testing.T) {
	cls := &stubClassifier{analysis: &domain.AIAnalysis{
		CanAutoResolve: true,
		Confidence:     0.95,
		Response:       "Reset your password from the account page.",
		Routing:        domain.RoutingAnalysis{Priority: domain.TicketPriorityUrgent},
	}}
	h := newHarness(t, cls)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "How do I reset my password?",
		Source:     domain.TicketSourceWeb,
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
	assert.Nil(t, ticket.TeamID)
	assert.Nil(t, ticket.AssignedAgentID)

	responses, err := h.svc.ListResponses(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, domain.ResponseTypeAI, responses[0].Type)
	assert.Nil(t, responses[0].AuthorID)

	// Auto-resolution short-circuits routing even though a rule would match.
	assert.Empty(t, h.history.byAction(ticket.ID, domain.HistoryActionRoute))
	assert.Equal(t, int64(1), h.metrics.RoutingOutcomes()[observability.CounterAutoResolved])
	assert.Equal(t, int64(0), h.metrics.RoutingOutcomes()[observability.CounterRouted])
	assert.Equal(t, 1, h.seen[events.EventTicketAutoResolved])
	assert.Equal(t, 0, h.seen[events.EventTicketRouted])
}

func TestCreateTicketClassifierFailureDegrades(t *testing.T) {
	cls := &stubClassifier{err: errors.New("model unavailable")}
	h := newHarness(t, cls)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Payment failed at checkout",
		Source:     domain.TicketSourceWeb,
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	// Submitted fields still drive routing.
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, "team-billing", *ticket.TeamID)
	assert.Equal(t, int64(1), h.metrics.RoutingOutcomes()[observability.CounterClassifierFailures])
	assert.Equal(t, 1, cls.calls)
}

func TestCreateTicketClassifierPriorityOverrideRoutesOnly(t *testing.T) {
	cls := &stubClassifier{analysis: &domain.AIAnalysis{
		CanAutoResolve: false,
		Confidence:     0.7,
		Routing:        domain.RoutingAnalysis{Priority: domain.TicketPriorityUrgent},
	}}
	h := newHarness(t, cls)
	h.seedDefaultRules(t)

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Refund taking very long",
		Source:     domain.TicketSourceWeb,
		Priority:   domain.TicketPriorityLow,
	})
	require.NoError(t, err)

	// The classifier's urgency matched the billing rule, but the stored
	// ticket keeps the customer's submitted priority.
	require.NotNil(t, ticket.TeamID)
	assert.Equal(t, "team-billing", *ticket.TeamID)
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority)
}

func TestCreateTicketRuleFetchFailureLeavesUnrouted(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)
	h.rules.failList = errors.New("connection refused")

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Urgent outage",
		Source:     domain.TicketSourceWeb,
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, int64(1), h.metrics.RoutingOutcomes()[observability.CounterUnrouted])
}

func TestCreateTicketRejectsUnknownCustomer(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "nobody",
		Title:      "Hello",
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", apperrors.ToDomainError(err).Code)
}

func TestUpdateTicketRecordsOnlyChangedFields(t *testing.T) {
	h := newHarness(t, nil)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Slow dashboard",
		Priority:   domain.TicketPriorityLow,
	})
	require.NoError(t, err)

	agentID := "agent-7"
	status := domain.TicketStatusOpen
	priority := domain.TicketPriorityHigh
	updated, err := h.svc.UpdateTicket(context.Background(), ticket.ID,
		Actor{Type: domain.SubjectTypeAgent, ID: &agentID},
		UpdateTicketInput{Status: &status, Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Equal(t, domain.TicketPriorityHigh, updated.Priority)

	updates := h.history.byAction(ticket.ID, domain.HistoryActionUpdate)
	require.Len(t, updates, 1)
	entry := updates[0]
	assert.Len(t, entry.NewValue, 2)
	assert.Equal(t, domain.TicketStatusNew, entry.OldValue["status"])
	assert.Equal(t, domain.TicketStatusOpen, entry.NewValue["status"])
	assert.Equal(t, domain.TicketPriorityLow, entry.OldValue["priority"])
	assert.Equal(t, domain.TicketPriorityHigh, entry.NewValue["priority"])
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, agentID, *entry.ActorID)
	assert.Equal(t, 1, h.seen[events.EventTicketStatusChanged])

	// Applying the identical patch again changes nothing and appends nothing.
	_, err = h.svc.UpdateTicket(context.Background(), ticket.ID,
		Actor{Type: domain.SubjectTypeAgent, ID: &agentID},
		UpdateTicketInput{Status: &status, Priority: &priority})
	require.NoError(t, err)
	assert.Len(t, h.history.byAction(ticket.ID, domain.HistoryActionUpdate), 1)
}

func TestUpdateTicketRejectsIllegalTransition(t *testing.T) {
	h := newHarness(t, nil)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Broken export",
	})
	require.NoError(t, err)

	status := domain.TicketStatusPending
	_, err = h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{Status: &status})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)

	// The failed patch must not leak partial state.
	current, err := h.svc.GetTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, current.Status)
}

func TestUpdateTicketManualAgentAssignmentSyncsTeam(t *testing.T) {
	h := newHarness(t, nil)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Need a human",
	})
	require.NoError(t, err)

	agentID := "agent-7"
	updated, err := h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{
		AssignedAgentID: &agentID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedAgentID)
	assert.Equal(t, "agent-7", *updated.AssignedAgentID)
	require.NotNil(t, updated.TeamID)
	assert.Equal(t, "team-chat", *updated.TeamID)
}

func TestUpdateTicketCloseAndReopen(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Urgent invoice question",
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TicketStatusOpen, ticket.Status)

	closed := domain.TicketStatusClosed
	updated, err := h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{Status: &closed})
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)

	open := domain.TicketStatusOpen
	reopened, err := h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{Status: &open})
	require.NoError(t, err)
	assert.Nil(t, reopened.ClosedAt)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
}

func TestAddResponseRejectsClosedTicket(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Urgent duplicate charge",
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	closed := domain.TicketStatusClosed
	_, err = h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{Status: &closed})
	require.NoError(t, err)

	custID := "cust-1"
	_, err = h.svc.AddResponse(context.Background(), ticket.ID,
		Actor{Type: domain.SubjectTypeCustomer, ID: &custID},
		domain.ResponseTypeCustomer, "any update?")
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
}

func TestAddResponseAppendsHistory(t *testing.T) {
	h := newHarness(t, nil)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Question about API limits",
	})
	require.NoError(t, err)

	agentID := "agent-7"
	response, err := h.svc.AddResponse(context.Background(), ticket.ID,
		Actor{Type: domain.SubjectTypeAgent, ID: &agentID},
		domain.ResponseTypeAgent, "Limits are documented on the pricing page.")
	require.NoError(t, err)

	entries := h.history.byAction(ticket.ID, domain.HistoryActionAddResponse)
	require.Len(t, entries, 1)
	assert.Equal(t, response.ID, entries[0].NewValue["response_id"])
	assert.Equal(t, 1, h.seen[events.EventTicketResponseAdded])
}

func TestListHistoryIsChronological(t *testing.T) {
	h := newHarness(t, nil)
	h.seedDefaultRules(t)
	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Urgent login failure",
		Priority:   domain.TicketPriorityUrgent,
	})
	require.NoError(t, err)

	pending := domain.TicketStatusPending
	_, err = h.svc.UpdateTicket(context.Background(), ticket.ID, Actor{}, UpdateTicketInput{Status: &pending})
	require.NoError(t, err)

	timeline, err := h.svc.ListHistory(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	assert.Equal(t, domain.HistoryActionCreate, timeline[0].Action)
	assert.Equal(t, domain.HistoryActionRoute, timeline[1].Action)
	assert.Equal(t, domain.HistoryActionUpdate, timeline[2].Action)
}

func TestHistoryAppendFailureDoesNotFailCreate(t *testing.T) {
	h := newHarness(t, nil)
	h.history.failCreate = errors.New("history table gone")

	ticket, err := h.svc.CreateTicket(context.Background(), CreateTicketInput{
		CustomerID: "cust-1",
		Title:      "Still works without audit log",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.ID)
}
