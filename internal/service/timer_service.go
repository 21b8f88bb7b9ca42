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

// TimerService drives the per (ticket, user) timer state machine.
type TimerService struct {
	timers     repository.TimerRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// TimerDependencies bundles collaborators for the timer service.
type TimerDependencies struct {
	TimerRepo  repository.TimerRepository
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// TimerView is a timer together with its live elapsed time.
type TimerView struct {
	Timer     *domain.ActiveTimer
	State     domain.TimerState
	ElapsedMs int64
}

// StopOutcome is what Stop hands back: the removed timer, its finalized timing,
// and an unsaved work-entry draft built from both.
type StopOutcome struct {
	Timer  domain.ActiveTimer
	Result domain.StopResult
	Draft  domain.WorkEntryDraft
}

// NewTimerService constructs the service.
func NewTimerService(deps TimerDependencies) *TimerService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &TimerService{
		timers:     deps.TimerRepo,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		metrics:    deps.Metrics,
		logger:     nopLogger(deps.Logger),
	}
}

// Start creates a running timer for the actor on the ticket.
func (s *TimerService) Start(ctx context.Context, actor domain.Actor, ticketID string) (*TimerView, error) {
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	timer := domain.NewActiveTimer(ticket.TenantID, ticket.ID, actor.UserID, now)
	if err := s.timers.Create(ctx, timer); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("a timer is already active for this ticket", timerDetails(ticketID, actor.UserID))
		}
		return nil, err
	}

	s.metrics.Inc(observability.CounterTimerStarted)
	s.publishTimer(ctx, events.EventTimerStarted, actor, timer, now)
	return s.view(timer, now), nil
}

// Pause stops the clock on a running timer.
func (s *TimerService) Pause(ctx context.Context, actor domain.Actor, ticketID string) (*TimerView, error) {
	if _, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	timer, err := s.timers.Update(ctx, ticketID, actor.UserID, func(t *domain.ActiveTimer) error {
		if !t.Pause(now) {
			return errorutil.NewInvalidState("timer is already paused", timerDetails(ticketID, actor.UserID))
		}
		return nil
	})
	if err != nil {
		return nil, s.mapTimerError(err, ticketID, actor.UserID)
	}

	s.publishTimer(ctx, events.EventTimerPaused, actor, timer, now)
	return s.view(timer, now), nil
}

// Resume restarts the clock on a paused timer, folding the pause into the total.
func (s *TimerService) Resume(ctx context.Context, actor domain.Actor, ticketID string) (*TimerView, error) {
	if _, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	timer, err := s.timers.Update(ctx, ticketID, actor.UserID, func(t *domain.ActiveTimer) error {
		if !t.Resume(now) {
			return errorutil.NewInvalidState("timer is not paused", timerDetails(ticketID, actor.UserID))
		}
		return nil
	})
	if err != nil {
		return nil, s.mapTimerError(err, ticketID, actor.UserID)
	}

	s.publishTimer(ctx, events.EventTimerResumed, actor, timer, now)
	return s.view(timer, now), nil
}

// Stop finalizes and removes the timer. Running and paused timers may both be
// stopped; an open pause counts as paused time up to the stop instant.
func (s *TimerService) Stop(ctx context.Context, actor domain.Actor, ticketID string) (*StopOutcome, error) {
	if _, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	timer, err := s.timers.Take(ctx, ticketID, actor.UserID, nil)
	if err != nil {
		return nil, s.mapTimerError(err, ticketID, actor.UserID)
	}

	result := timer.Finalize(now)
	outcome := &StopOutcome{
		Timer:  *timer,
		Result: result,
		Draft:  BuildDraft(*timer, result),
	}

	s.metrics.Inc(observability.CounterTimerStopped)
	publish(ctx, s.dispatcher, s.logger, now, events.Event{
		Type:     events.EventTimerStopped,
		TenantID: timer.TenantID,
		TicketID: timer.TicketID,
		Actor:    eventActor(actor),
		Payload: events.TimerStoppedPayload{
			UserID:        timer.UserID,
			DurationMs:    result.DurationMs,
			TotalPausedMs: result.TotalPausedMs,
			StoppedAt:     result.StoppedAt,
		},
	})
	return outcome, nil
}

// GetTimer returns the actor's timer on a ticket. A missing timer is reported as
// the absent state rather than an error.
func (s *TimerService) GetTimer(ctx context.Context, actor domain.Actor, ticketID string) (*TimerView, error) {
	if _, err := loadTicket(ctx, s.tickets, actor.TenantID, ticketID); err != nil {
		return nil, err
	}
	timer, err := s.timers.Get(ctx, ticketID, actor.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &TimerView{State: domain.TimerStateAbsent}, nil
		}
		return nil, err
	}
	return s.view(timer, s.clock.Now()), nil
}

// ListUserTimers returns every running or paused timer the actor owns.
func (s *TimerService) ListUserTimers(ctx context.Context, actor domain.Actor) ([]TimerView, error) {
	timers, err := s.timers.ListByUser(ctx, actor.TenantID, actor.UserID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]TimerView, 0, len(timers))
	for i := range timers {
		views = append(views, *s.view(&timers[i], now))
	}
	return views, nil
}

// ElapsedNow is the live elapsed time of timer against the service clock.
func (s *TimerService) ElapsedNow(timer *domain.ActiveTimer) int64 {
	if timer == nil {
		return 0
	}
	return timer.ElapsedMs(s.clock.Now())
}

func (s *TimerService) view(timer *domain.ActiveTimer, now time.Time) *TimerView {
	return &TimerView{
		Timer:     timer,
		State:     timer.State(),
		ElapsedMs: timer.ElapsedMs(now),
	}
}

func (s *TimerService) mapTimerError(err error, ticketID, userID string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewInvalidState("no active timer for this ticket", timerDetails(ticketID, userID))
	}
	return err
}

func (s *TimerService) publishTimer(ctx context.Context, eventType events.EventType, actor domain.Actor, timer *domain.ActiveTimer, now time.Time) {
	publish(ctx, s.dispatcher, s.logger, now, events.Event{
		Type:     eventType,
		TenantID: timer.TenantID,
		TicketID: timer.TicketID,
		Actor:    eventActor(actor),
		Payload: events.TimerPayload{
			UserID:        timer.UserID,
			StartedAt:     timer.StartedAt,
			PausedAt:      timer.PausedAt,
			TotalPausedMs: timer.TotalPausedMs,
		},
	})
}

func timerDetails(ticketID, userID string) map[string]any {
	return map[string]any{"ticket_id": ticketID, "user_id": userID}
}
