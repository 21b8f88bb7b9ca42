package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
	"github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// ComputeDueDates selects the budgets for the ticket's priority (medium when
// unset) and offsets them from reference.
func ComputeDueDates(ticket *domain.Ticket, def *domain.SlaDefinition, reference time.Time) (domain.DueDates, error) {
	priority := ticket.Priority.Normalize()
	response, ok := def.Response.For(priority)
	if !ok {
		return domain.DueDates{}, errorutil.NewValidationError("unknown ticket priority", map[string]any{"priority": string(ticket.Priority)})
	}
	resolution, _ := def.Resolution.For(priority)
	return domain.DueDates{
		ResponseDueAt:   reference.Add(time.Duration(response) * time.Minute),
		ResolutionDueAt: reference.Add(time.Duration(resolution) * time.Minute),
	}, nil
}

// EvaluateBreach reports which clocks are past due at now. Unmanaged tickets
// never breach.
func EvaluateBreach(ticket *domain.Ticket, now time.Time) domain.BreachState {
	var state domain.BreachState
	if ticket.FirstResponseAt == nil && ticket.SlaResponseDueAt != nil && now.After(*ticket.SlaResponseDueAt) {
		state.ResponseBreached = true
	}
	if ticket.ResolvedAt == nil && ticket.SlaResolutionDueAt != nil && now.After(*ticket.SlaResolutionDueAt) {
		state.ResolutionBreached = true
	}
	return state
}

// SlaService owns the SLA fields of tickets.
type SlaService struct {
	tickets     repository.TicketRepository
	slas        repository.SlaRepository
	history     repository.TicketHistoryRepository
	escalations *EscalationService
	dispatcher  events.Dispatcher
	clock       clock.Clock
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// SlaDependencies bundles collaborators for the SLA service.
type SlaDependencies struct {
	TicketRepo  repository.TicketRepository
	SlaRepo     repository.SlaRepository
	HistoryRepo repository.TicketHistoryRepository
	Escalations *EscalationService
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// SlaStatus is a read model of a ticket's SLA position at a point in time.
type SlaStatus struct {
	Ticket            *domain.Ticket
	Definition        *domain.SlaDefinition
	Breach            domain.BreachState
	ResponsePercent   *float64
	ResolutionPercent *float64
	Crossed           []domain.CrossedEscalation
	EvaluatedAt       time.Time
}

// NewSlaService constructs the service.
func NewSlaService(deps SlaDependencies) *SlaService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &SlaService{
		tickets:     deps.TicketRepo,
		slas:        deps.SlaRepo,
		history:     deps.HistoryRepo,
		escalations: deps.Escalations,
		dispatcher:  deps.Dispatcher,
		clock:       clk,
		metrics:     deps.Metrics,
		logger:      nopLogger(deps.Logger),
	}
}

// ResolveDefinition returns the ticket's assigned definition, or the tenant's
// active default. A nil result means the ticket is not SLA managed.
func (s *SlaService) ResolveDefinition(ctx context.Context, ticket *domain.Ticket) (*domain.SlaDefinition, error) {
	if ticket.SlaDefinitionID != nil {
		def, err := s.slas.GetByID(ctx, *ticket.SlaDefinitionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": *ticket.SlaDefinitionID})
			}
			return nil, err
		}
		return def, nil
	}
	def, err := s.slas.GetDefault(ctx, ticket.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return def, nil
}

// AttachSla computes due dates from the ticket's creation time. Called by the
// ticket CRUD layer once a ticket exists. definitionID pins a specific definition;
// nil uses the assigned one or the tenant default.
func (s *SlaService) AttachSla(ctx context.Context, actor domain.Actor, ticketID string, definitionID *string) (*domain.Ticket, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, err
	}
	if definitionID != nil {
		def, err := s.slas.GetByID(ctx, *definitionID)
		if err != nil || def.TenantID != ticket.TenantID {
			if err == nil || errors.Is(err, pgx.ErrNoRows) {
				return nil, errorutil.NewNotFound("sla definition", map[string]any{"sla_definition_id": *definitionID})
			}
			return nil, err
		}
		ticket.SlaDefinitionID = &def.ID
	}

	def, err := s.ResolveDefinition(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if def == nil {
		ticket.SlaResponseDueAt = nil
		ticket.SlaResolutionDueAt = nil
	} else {
		due, err := ComputeDueDates(ticket, def, ticket.CreatedAt)
		if err != nil {
			return nil, err
		}
		ticket.SlaDefinitionID = &def.ID
		ticket.SlaResponseDueAt = timePtr(due.ResponseDueAt)
		ticket.SlaResolutionDueAt = timePtr(due.ResolutionDueAt)
	}
	if err := s.tickets.UpdateSlaSchedule(ctx, ticket); err != nil {
		return nil, err
	}

	newValue := map[string]any{"managed": def != nil}
	if def != nil {
		newValue["sla_definition_id"] = def.ID
		newValue["sla_response_due_at"] = ticket.SlaResponseDueAt
		newValue["sla_resolution_due_at"] = ticket.SlaResolutionDueAt
	}
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeSlaAttached, nil, newValue)
	return ticket, nil
}

// ChangePriority sets a new priority and restarts both SLA clocks from now using
// the new priority's budgets. Time already spent is not credited.
func (s *SlaService) ChangePriority(ctx context.Context, actor domain.Actor, ticketID string, priority domain.TicketPriority) (*domain.Ticket, error) {
	if !priority.Valid() {
		return nil, errorutil.NewValidationError("unknown ticket priority", map[string]any{"priority": string(priority)})
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, err
	}
	oldPriority := ticket.Priority
	newPriority := priority.Normalize()
	if oldPriority.Normalize() == newPriority && oldPriority != "" {
		return ticket, nil
	}

	now := s.clock.Now()
	ticket.Priority = newPriority
	def, err := s.ResolveDefinition(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if def != nil {
		due, err := ComputeDueDates(ticket, def, now)
		if err != nil {
			return nil, err
		}
		ticket.SlaDefinitionID = &def.ID
		ticket.SlaResponseDueAt = timePtr(due.ResponseDueAt)
		ticket.SlaResolutionDueAt = timePtr(due.ResolutionDueAt)
	}
	if err := s.tickets.UpdateSlaSchedule(ctx, ticket); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypePriority,
		map[string]any{"priority": oldPriority},
		map[string]any{
			"priority":              newPriority,
			"sla_response_due_at":   ticket.SlaResponseDueAt,
			"sla_resolution_due_at": ticket.SlaResolutionDueAt,
		})
	publish(ctx, s.dispatcher, s.logger, now, events.Event{
		Type:     events.EventTicketPriorityChanged,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.TicketPriorityChangedPayload{
			OldPriority:        oldPriority,
			NewPriority:        newPriority,
			SlaResponseDueAt:   ticket.SlaResponseDueAt,
			SlaResolutionDueAt: ticket.SlaResolutionDueAt,
		},
	})
	return ticket, nil
}

// RecordFirstResponse stores the first response time once. Later calls leave it
// untouched and report false. A nil at means now.
func (s *SlaService) RecordFirstResponse(ctx context.Context, actor domain.Actor, ticketID string, at *time.Time) (*domain.Ticket, bool, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, false, err
	}
	if ticket.FirstResponseAt != nil {
		return ticket, false, nil
	}
	respondedAt := s.clock.Now()
	if at != nil {
		respondedAt = *at
	}
	recorded, err := s.tickets.SetFirstResponse(ctx, ticket.ID, respondedAt)
	if err != nil {
		return nil, false, err
	}
	if recorded {
		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeFirstResponse, nil, map[string]any{"first_response_at": respondedAt})
	}
	ticket, err = loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, false, err
	}
	return ticket, recorded, nil
}

// MarkResolved stops the resolution clock. Already resolved tickets are left as is.
func (s *SlaService) MarkResolved(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, bool, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, false, err
	}
	if ticket.IsResolved() {
		return ticket, false, nil
	}
	now := s.clock.Now()
	resolved, err := s.tickets.MarkResolved(ctx, ticket.ID, now)
	if err != nil {
		return nil, false, err
	}
	if resolved {
		s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeResolved,
			map[string]any{"status": ticket.Status},
			map[string]any{"status": domain.TicketStatusResolved, "resolved_at": now})
	}
	ticket, err = loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, false, err
	}
	return ticket, resolved, nil
}

// EvaluateBreach checks the ticket at now and latches SlaBreached the first time
// a clock is observed past due. It never clears the flag.
func (s *SlaService) EvaluateBreach(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, domain.BreachState, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, domain.BreachState{}, err
	}
	state, err := s.evaluateTicket(ctx, actor, ticket, s.clock.Now())
	if err != nil {
		return nil, domain.BreachState{}, err
	}
	return ticket, state, nil
}

// evaluateTicket applies breach detection to an already loaded ticket and updates
// it in place when the flag is latched.
func (s *SlaService) evaluateTicket(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, now time.Time) (domain.BreachState, error) {
	if !ticket.SlaManaged() {
		return domain.BreachState{}, nil
	}
	state := EvaluateBreach(ticket, now)
	if !state.Any() || ticket.SlaBreached {
		return state, nil
	}

	latched, err := s.tickets.MarkBreached(ctx, ticket.ID)
	if err != nil {
		return state, err
	}
	ticket.SlaBreached = true
	if !latched {
		return state, nil
	}

	s.metrics.Inc(observability.CounterSlaBreached)
	s.recordHistory(ctx, actor, ticket.ID, domain.ChangeTypeSlaBreached,
		map[string]any{"sla_breached": false},
		map[string]any{
			"sla_breached":        true,
			"response_breached":   state.ResponseBreached,
			"resolution_breached": state.ResolutionBreached,
		})
	publish(ctx, s.dispatcher, s.logger, now, events.Event{
		Type:     events.EventSlaBreached,
		TenantID: ticket.TenantID,
		TicketID: ticket.ID,
		Actor:    eventActor(actor),
		Payload: events.SlaBreachedPayload{
			ResponseBreached:   state.ResponseBreached,
			ResolutionBreached: state.ResolutionBreached,
			ObservedAt:         now,
		},
	})
	return state, nil
}

// GetSlaStatus reports due dates, breach state, elapsed percentages and the
// escalation levels crossed so far. It does not persist anything.
func (s *SlaService) GetSlaStatus(ctx context.Context, actor domain.Actor, ticketID string) (*SlaStatus, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	status := &SlaStatus{
		Ticket:      ticket,
		Breach:      EvaluateBreach(ticket, now),
		EvaluatedAt: now,
	}
	if !ticket.SlaManaged() {
		return status, nil
	}
	def, err := s.ResolveDefinition(ctx, ticket)
	if err != nil {
		return nil, err
	}
	status.Definition = def
	if percent, ok := PercentElapsed(ticket, now, domain.EscalationTypeResponse); ok {
		status.ResponsePercent = &percent
	}
	if percent, ok := PercentElapsed(ticket, now, domain.EscalationTypeResolution); ok {
		status.ResolutionPercent = &percent
	}
	status.Crossed = CrossedEscalations(ticket, def, now)
	return status, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *SlaService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if _, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID); err != nil {
		return nil, err
	}
	return s.history.ListByTicket(ctx, ticketID, limit, offset)
}

// Sweep evaluates breach and escalations for one ticket on behalf of the system.
func (s *SlaService) Sweep(ctx context.Context, ticket *domain.Ticket, def *domain.SlaDefinition, now time.Time) (domain.BreachState, []domain.CrossedEscalation, error) {
	state, err := s.evaluateTicket(ctx, domain.Actor{}, ticket, now)
	if err != nil {
		return state, nil, err
	}
	if s.escalations == nil {
		return state, nil, nil
	}
	return state, s.escalations.Evaluate(ctx, ticket, def, now), nil
}

func (s *SlaService) recordHistory(ctx context.Context, actor domain.Actor, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if err := recordHistory(ctx, s.history, actor, ticketID, change, oldValue, newValue); err != nil {
		s.logger.Warn("record ticket history failed",
			zap.String("ticket_id", ticketID),
			zap.String("change_type", string(change)),
			zap.Error(err))
	}
}
