package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/classifier"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/routing"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Actor identifies who performed a mutation. A zero Actor is the system or
// the AI pipeline.
type Actor struct {
	Type domain.SubjectType
	ID   *string
}

// CreateTicketInput carries customer-submitted ticket fields.
type CreateTicketInput struct {
	CustomerID   string
	Title        string
	Description  string
	Source       domain.TicketSource
	Priority     domain.TicketPriority
	Tags         []string
	CustomFields map[string]any
	Metadata     map[string]any
}

// UpdateTicketInput is a sparse patch: nil fields are untouched. Unassign
// clears both team and agent and wins over TeamID/AssignedAgentID.
type UpdateTicketInput struct {
	Title           *string
	Description     *string
	Priority        *domain.TicketPriority
	Status          *domain.TicketStatus
	Tags            *[]string
	TeamID          *string
	AssignedAgentID *string
	Unassign        bool
	CustomFields    map[string]any
}

// TicketService drives the ticket lifecycle: intake, AI classification,
// auto-resolution, rule-based routing, manual updates, responses and the
// audit timeline.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	responses  repository.TicketResponseRepository
	users      repository.UserRepository
	agents     repository.AgentRepository
	teams      repository.TeamRepository
	classifier classifier.Classifier
	routing    *RoutingService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	lookback   int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	HistoryRepo  repository.TicketHistoryRepository
	ResponseRepo repository.TicketResponseRepository
	UserRepo     repository.UserRepository
	AgentRepo    repository.AgentRepository
	TeamRepo     repository.TeamRepository
	Classifier   classifier.Classifier
	Routing      *RoutingService
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewTicketService constructs the service. A nil Classifier disables the AI
// stage entirely; routing then works off the submitted fields.
func NewTicketService(cfg config.RoutingConfig, deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lookback := cfg.HistoryLookback
	if lookback <= 0 {
		lookback = 5
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		responses:  deps.ResponseRepo,
		users:      deps.UserRepo,
		agents:     deps.AgentRepo,
		teams:      deps.TeamRepo,
		classifier: deps.Classifier,
		routing:    deps.Routing,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		lookback:   lookback,
	}
}

// CreateTicket persists a new ticket and runs it through the classification
// and routing pipeline. Persisting the baseline ticket is the only fatal
// step: once the row exists, classifier or routing failures degrade and the
// ticket simply stays unrouted in status new. The pipeline runs on a
// detached context so a dropped client connection cannot abort it halfway.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	if err := s.validateCreate(ctx, &input); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		ExternalKey:  newExternalKey(),
		CustomerID:   input.CustomerID,
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		Source:       input.Source,
		Status:       domain.TicketStatusNew,
		Priority:     input.Priority,
		Tags:         normalizeTags(input.Tags),
		CustomFields: input.CustomFields,
		Metadata:     input.Metadata,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordRoutingOutcome(observability.CounterTicketsCreated)

	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		Action:   domain.HistoryActionCreate,
		NewValue: map[string]any{
			"status":   ticket.Status,
			"priority": ticket.Priority,
			"source":   ticket.Source,
			"title":    ticket.Title,
		},
	})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{Type: domain.SubjectTypeCustomer, CustomerID: &ticket.CustomerID},
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Source:   ticket.Source,
			Priority: ticket.Priority,
		},
	})

	s.processNewTicket(context.WithoutCancel(ctx), ticket)
	return ticket, nil
}

// processNewTicket is the classify / auto-resolve / route pipeline. Every
// failure past this point is logged and absorbed.
func (s *TicketService) processNewTicket(ctx context.Context, ticket *domain.Ticket) {
	analysis := s.classify(ctx, ticket)

	if analysis.CanAutoResolve && s.autoResolve(ctx, ticket, analysis) {
		return
	}

	if s.routing == nil {
		s.metrics.RecordRoutingOutcome(observability.CounterUnrouted)
		return
	}
	rules, err := s.routing.ActiveRules(ctx)
	if err != nil {
		s.logger.Error("rule fetch failed; ticket left unrouted",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		s.metrics.RecordRoutingOutcome(observability.CounterUnrouted)
		return
	}

	view := routing.BuildPayload(ticket, analysis)
	matched := routing.Match(rules, view)
	if matched == nil {
		s.logger.Info("no routing rule matched",
			zap.String("ticket_id", ticket.ID), zap.Int("rules_evaluated", len(rules)))
		s.metrics.RecordRoutingOutcome(observability.CounterUnrouted)
		return
	}

	if err := s.routing.Apply(ctx, matched, ticket); err != nil {
		s.logger.Error("routing rule application failed",
			zap.String("ticket_id", ticket.ID),
			zap.String("rule_id", matched.ID), zap.Error(err))
		s.metrics.RecordRoutingOutcome(observability.CounterUnrouted)
		return
	}
	s.metrics.RecordRoutingOutcome(observability.CounterRouted)
}

// classify runs the AI pre-classifier and degrades to the submitted fields
// on any failure.
func (s *TicketService) classify(ctx context.Context, ticket *domain.Ticket) *domain.AIAnalysis {
	req := classifier.Request{
		Title:           ticket.Title,
		Description:     ticket.Description,
		Source:          ticket.Source,
		Priority:        ticket.Priority,
		Tags:            ticket.Tags,
		CustomFields:    ticket.CustomFields,
		CustomerHistory: s.customerHistory(ctx, ticket),
	}
	if s.classifier == nil {
		return classifier.Fallback(req)
	}
	analysis, err := s.classifier.Analyze(ctx, req)
	if err != nil {
		s.logger.Warn("classification failed; degrading to submitted fields",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		s.metrics.RecordRoutingOutcome(observability.CounterClassifierFailures)
		return classifier.Fallback(req)
	}
	return analysis
}

func (s *TicketService) customerHistory(ctx context.Context, ticket *domain.Ticket) []classifier.PastTicket {
	recent, err := s.tickets.ListRecentByCustomer(ctx, ticket.CustomerID, s.lookback+1)
	if err != nil {
		s.logger.Debug("customer history lookup failed", zap.Error(err))
		return nil
	}
	past := make([]classifier.PastTicket, 0, len(recent))
	for _, t := range recent {
		if t.ID == ticket.ID {
			continue
		}
		past = append(past, classifier.PastTicket{
			Title:     t.Title,
			Status:    t.Status,
			CreatedAt: t.CreatedAt,
		})
		if len(past) == s.lookback {
			break
		}
	}
	return past
}

// autoResolve closes the loop for tickets the classifier can answer itself:
// store the AI response, move the ticket to resolved and skip routing.
// Returns false if persistence fails, in which case the caller falls back to
// the routing path.
func (s *TicketService) autoResolve(ctx context.Context, ticket *domain.Ticket, analysis *domain.AIAnalysis) bool {
	response := &domain.TicketResponse{
		TicketID: ticket.ID,
		Type:     domain.ResponseTypeAI,
		Body:     analysis.Response,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		s.logger.Error("auto-resolve response persist failed; routing instead",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		Action:   domain.HistoryActionAddResponse,
		NewValue: map[string]any{"response_id": response.ID, "response_type": response.Type},
	})

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusResolved
	if err := s.tickets.Update(ctx, ticket); err != nil {
		ticket.Status = oldStatus
		s.logger.Error("auto-resolve status update failed; routing instead",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
		return false
	}
	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		Action:   domain.HistoryActionUpdate,
		OldValue: map[string]any{"status": oldStatus},
		NewValue: map[string]any{"status": ticket.Status},
	})
	s.metrics.RecordRoutingOutcome(observability.CounterAutoResolved)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAutoResolved,
		TicketID: ticket.ID,
		Payload: events.TicketAutoResolvedPayload{
			Confidence: analysis.Confidence,
			ResponseID: response.ID,
		},
	})
	return true
}

// UpdateTicket applies a sparse patch. Only fields that actually change are
// written to history; a patch that changes nothing appends no entry.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID string, actor Actor, input UpdateTicketInput) (*domain.Ticket, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	oldValue := map[string]any{}
	newValue := map[string]any{}
	oldStatus := ticket.Status

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		if title != ticket.Title {
			oldValue["title"] = ticket.Title
			newValue["title"] = title
			ticket.Title = title
		}
	}
	if input.Description != nil && *input.Description != ticket.Description {
		oldValue["description"] = ticket.Description
		newValue["description"] = *input.Description
		ticket.Description = *input.Description
	}
	if input.Priority != nil {
		if !domain.IsValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		if *input.Priority != ticket.Priority {
			oldValue["priority"] = ticket.Priority
			newValue["priority"] = *input.Priority
			ticket.Priority = *input.Priority
		}
	}
	if input.Tags != nil {
		tags := normalizeTags(*input.Tags)
		if !equalTags(tags, ticket.Tags) {
			oldValue["tags"] = ticket.Tags
			newValue["tags"] = tags
			ticket.Tags = tags
		}
	}
	if input.CustomFields != nil {
		oldValue["custom_fields"] = ticket.CustomFields
		newValue["custom_fields"] = input.CustomFields
		ticket.CustomFields = input.CustomFields
	}

	if err := s.applyAssignmentPatch(ctx, ticket, input, oldValue, newValue); err != nil {
		return nil, err
	}

	if input.Status != nil && *input.Status != oldStatus {
		next := *input.Status
		if !domain.IsValidStatus(next) {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
		}
		if !domain.IsValidTransition(oldStatus, next) {
			return nil, apperrors.NewConflict("illegal status transition",
				map[string]any{"from": oldStatus, "to": next})
		}
		oldValue["status"] = oldStatus
		newValue["status"] = next
		ticket.Status = next
		if next == domain.TicketStatusClosed {
			now := time.Now()
			ticket.ClosedAt = &now
		} else if oldStatus == domain.TicketStatusClosed {
			ticket.ClosedAt = nil
		}
	}

	if len(newValue) == 0 {
		return ticket, nil
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.HistoryActionUpdate,
		OldValue: oldValue,
		NewValue: newValue,
	})

	changed := make([]string, 0, len(newValue))
	for field := range newValue {
		changed = append(changed, field)
	}
	s.publish(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload:  events.TicketUpdatedPayload{ChangedFields: changed},
	})
	if ticket.Status != oldStatus {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    eventActor(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// applyAssignmentPatch handles manual team/agent reassignment. Assigning an
// agent also moves the ticket onto that agent's team.
func (s *TicketService) applyAssignmentPatch(ctx context.Context, ticket *domain.Ticket, input UpdateTicketInput, oldValue, newValue map[string]any) error {
	if input.Unassign {
		if ticket.TeamID != nil {
			oldValue["team_id"] = *ticket.TeamID
			newValue["team_id"] = nil
			ticket.TeamID = nil
		}
		if ticket.AssignedAgentID != nil {
			oldValue["assigned_agent_id"] = *ticket.AssignedAgentID
			newValue["assigned_agent_id"] = nil
			ticket.AssignedAgentID = nil
		}
		return nil
	}

	if input.TeamID != nil && (ticket.TeamID == nil || *ticket.TeamID != *input.TeamID) {
		team, err := s.teams.GetByID(ctx, *input.TeamID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("team", map[string]any{"team_id": *input.TeamID})
			}
			return apperrors.MapError(err)
		}
		if !team.IsActive {
			return apperrors.NewConflict("team inactive", map[string]any{"team_id": team.ID})
		}
		oldValue["team_id"] = ticket.TeamID
		newValue["team_id"] = team.ID
		ticket.TeamID = &team.ID
	}

	if input.AssignedAgentID != nil && (ticket.AssignedAgentID == nil || *ticket.AssignedAgentID != *input.AssignedAgentID) {
		agent, err := s.agents.GetByID(ctx, *input.AssignedAgentID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("agent", map[string]any{"agent_id": *input.AssignedAgentID})
			}
			return apperrors.MapError(err)
		}
		if !agent.Active {
			return apperrors.NewConflict("agent inactive", map[string]any{"agent_id": agent.ID})
		}
		oldValue["assigned_agent_id"] = ticket.AssignedAgentID
		newValue["assigned_agent_id"] = agent.ID
		ticket.AssignedAgentID = &agent.ID
		if agent.TeamID != nil && (ticket.TeamID == nil || *ticket.TeamID != *agent.TeamID) {
			oldValue["team_id"] = ticket.TeamID
			newValue["team_id"] = *agent.TeamID
			ticket.TeamID = agent.TeamID
		}
	}
	return nil
}

// AddResponse appends a message to the ticket thread.
func (s *TicketService) AddResponse(ctx context.Context, ticketID string, actor Actor, responseType domain.ResponseType, body string) (*domain.TicketResponse, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("response body cannot be empty", nil)
	}
	if !domain.IsValidResponseType(responseType) {
		return nil, apperrors.NewValidationError("unknown response type", map[string]any{"type": responseType})
	}
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("ticket is closed", map[string]any{"ticket_id": ticket.ID})
	}

	response := &domain.TicketResponse{
		TicketID: ticket.ID,
		AuthorID: actor.ID,
		Type:     responseType,
		Body:     body,
	}
	if err := s.responses.Create(ctx, response); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.appendHistory(ctx, &domain.TicketHistory{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.HistoryActionAddResponse,
		NewValue: map[string]any{"response_id": response.ID, "response_type": response.Type},
	})
	s.publish(ctx, events.Event{
		Type:     events.EventTicketResponseAdded,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketResponseAddedPayload{
			ResponseID: response.ID,
			Type:       response.Type,
			AuthorID:   response.AuthorID,
		},
	})
	return response, nil
}

// GetTicket fetches one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return s.getTicket(ctx, id)
}

// GetTicketByKey fetches one ticket by its external key.
func (s *TicketService) GetTicketByKey(ctx context.Context, key string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByExternalKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"external_key": key})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching a filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListHistory returns the audit timeline for a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListResponses returns the ticket thread, oldest first.
func (s *TicketService) ListResponses(ctx context.Context, ticketID string) ([]domain.TicketResponse, error) {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	responses, err := s.responses.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return responses, nil
}

func (s *TicketService) getTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) validateCreate(ctx context.Context, input *CreateTicketInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return apperrors.NewValidationError("title is required", nil)
	}
	if input.CustomerID == "" {
		return apperrors.NewValidationError("customer_id is required", nil)
	}
	if input.Source == "" {
		input.Source = domain.TicketSourceWeb
	}
	if !domain.IsValidSource(input.Source) {
		return apperrors.NewValidationError("unknown source", map[string]any{"source": input.Source})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !domain.IsValidPriority(input.Priority) {
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	customer, err := s.users.GetByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("customer", map[string]any{"customer_id": input.CustomerID})
		}
		return apperrors.MapError(err)
	}
	if customer.Status != domain.UserStatusActive {
		return apperrors.NewForbidden("customer account is suspended")
	}
	return nil
}

func (s *TicketService) appendHistory(ctx context.Context, entry *domain.TicketHistory) {
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

func (s *TicketService) publish(ctx context.Context, event events.Event) {
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

func eventActor(actor Actor) events.Actor {
	out := events.Actor{Type: actor.Type}
	switch actor.Type {
	case domain.SubjectTypeCustomer:
		out.CustomerID = actor.ID
	case domain.SubjectTypeAgent:
		out.AgentID = actor.ID
	}
	return out
}

func newExternalKey() string {
	return fmt.Sprintf("TCK-%s", strings.ToUpper(uuid.NewString()[:8]))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		duplicate := false
		for _, existing := range out {
			if existing == tag {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, tag)
		}
	}
	return out
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
