package service

import (
	"context"
	"errors"
	"strings"
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

// WorklogService reconciles stopped timers into work entries and manages them afterwards.
type WorklogService struct {
	entries    repository.WorkEntryRepository
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// WorklogDependencies bundles collaborators for the worklog service.
type WorklogDependencies struct {
	WorkEntryRepo repository.WorkEntryRepository
	TicketRepo    repository.TicketRepository
	HistoryRepo   repository.TicketHistoryRepository
	Dispatcher    events.Dispatcher
	Clock         clock.Clock
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// WorkEntryListFilter narrows work entry listings within the actor's tenant.
type WorkEntryListFilter struct {
	TicketID *string
	UserID   *string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// WorkEntryUpdate carries the editable fields of a work entry.
type WorkEntryUpdate struct {
	Description *string
	IsBillable  *bool
	HourlyRate  *int
}

// NewWorklogService constructs the service.
func NewWorklogService(deps WorklogDependencies) *WorklogService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &WorklogService{
		entries:    deps.WorkEntryRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
		clock:      clk,
		metrics:    deps.Metrics,
		logger:     nopLogger(deps.Logger),
	}
}

// BuildDraft turns a stopped timer into an editable, unsaved work entry.
// Duration and paused time are rounded to minutes independently.
func BuildDraft(timer domain.ActiveTimer, result domain.StopResult) domain.WorkEntryDraft {
	return domain.WorkEntryDraft{
		TenantID:        timer.TenantID,
		TicketID:        timer.TicketID,
		UserID:          timer.UserID,
		StartTime:       timer.StartedAt,
		EndTime:         result.StoppedAt,
		DurationMinutes: domain.RoundMinutes(result.DurationMs),
		PausedMinutes:   domain.RoundMinutes(result.TotalPausedMs),
		IsBillable:      true,
	}
}

// ValidateDraft checks a draft is ready to be persisted.
func ValidateDraft(draft domain.WorkEntryDraft) error {
	details := map[string]any{}
	if strings.TrimSpace(draft.Description) == "" {
		details["description"] = "required"
	}
	if draft.DurationMinutes < 0 {
		details["duration_minutes"] = "must not be negative"
	}
	if draft.PausedMinutes < 0 {
		details["paused_minutes"] = "must not be negative"
	}
	if draft.StartTime.IsZero() {
		details["start_time"] = "required"
	}
	if draft.EndTime.IsZero() {
		details["end_time"] = "required"
	} else if !draft.StartTime.IsZero() && draft.EndTime.Before(draft.StartTime) {
		details["end_time"] = "must not be before start_time"
	}
	if draft.HourlyRate != nil && *draft.HourlyRate < 0 {
		details["hourly_rate"] = "must not be negative"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid work entry", details)
	}
	return nil
}

// Confirm persists the draft as a work entry owned by the actor.
func (s *WorklogService) Confirm(ctx context.Context, actor domain.Actor, draft domain.WorkEntryDraft) (*domain.WorkEntry, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.TenantID, draft.TicketID)
	if err != nil {
		return nil, err
	}

	entry := &domain.WorkEntry{
		TenantID:        ticket.TenantID,
		TicketID:        ticket.ID,
		UserID:          actor.UserID,
		Description:     strings.TrimSpace(draft.Description),
		StartTime:       draft.StartTime,
		EndTime:         draft.EndTime,
		DurationMinutes: draft.DurationMinutes,
		PausedMinutes:   draft.PausedMinutes,
		IsBillable:      draft.IsBillable,
		HourlyRate:      draft.HourlyRate,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return nil, err
	}

	if err := recordHistory(ctx, s.history, actor, ticket.ID, domain.ChangeTypeWorkLogged, nil, map[string]any{
		"work_entry_id":    entry.ID,
		"duration_minutes": entry.DurationMinutes,
		"is_billable":      entry.IsBillable,
	}); err != nil {
		s.logger.Warn("record work history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.metrics.Inc(observability.CounterWorkEntryConfirmed)
	publish(ctx, s.dispatcher, s.logger, s.clock.Now(), events.Event{
		Type:     events.EventWorkEntryCreated,
		TenantID: entry.TenantID,
		TicketID: entry.TicketID,
		Actor:    eventActor(actor),
		Payload: events.WorkEntryCreatedPayload{
			WorkEntryID:     entry.ID,
			UserID:          entry.UserID,
			DurationMinutes: entry.DurationMinutes,
			IsBillable:      entry.IsBillable,
		},
	})
	return entry, nil
}

// Discard drops a draft. Nothing is persisted and the timing is gone.
func (s *WorklogService) Discard(ctx context.Context, actor domain.Actor, draft domain.WorkEntryDraft) {
	s.metrics.Inc(observability.CounterWorkDraftDiscarded)
	s.logger.Info("work draft discarded",
		zap.String("ticket_id", draft.TicketID),
		zap.String("user_id", actor.UserID),
		zap.Int("duration_minutes", draft.DurationMinutes))
}

// List returns work entries of the actor's tenant.
func (s *WorklogService) List(ctx context.Context, actor domain.Actor, filter WorkEntryListFilter) ([]domain.WorkEntry, error) {
	if filter.TicketID != nil {
		if _, err := loadTicket(ctx, s.tickets, actor.TenantID, *filter.TicketID); err != nil {
			return nil, err
		}
	}
	return s.entries.ListWithFilter(ctx, s.repoFilter(actor, filter))
}

// Summary totals work entry minutes matching the filter.
func (s *WorklogService) Summary(ctx context.Context, actor domain.Actor, filter WorkEntryListFilter) (domain.WorkSummary, error) {
	if filter.TicketID != nil {
		if _, err := loadTicket(ctx, s.tickets, actor.TenantID, *filter.TicketID); err != nil {
			return domain.WorkSummary{}, err
		}
	}
	return s.entries.Summary(ctx, s.repoFilter(actor, filter))
}

// Get returns one work entry of the actor's tenant.
func (s *WorklogService) Get(ctx context.Context, actor domain.Actor, entryID string) (*domain.WorkEntry, error) {
	return s.tenantEntry(ctx, actor, entryID)
}

// Update edits the description, billable flag or hourly rate. Only the owner or an admin may edit.
func (s *WorklogService) Update(ctx context.Context, actor domain.Actor, entryID string, input WorkEntryUpdate) (*domain.WorkEntry, error) {
	entry, err := s.ownedEntry(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, errorutil.NewValidationError("invalid work entry", map[string]any{"description": "required"})
		}
		entry.Description = description
	}
	if input.IsBillable != nil {
		entry.IsBillable = *input.IsBillable
	}
	if input.HourlyRate != nil {
		if *input.HourlyRate < 0 {
			return nil, errorutil.NewValidationError("invalid work entry", map[string]any{"hourly_rate": "must not be negative"})
		}
		rate := *input.HourlyRate
		entry.HourlyRate = &rate
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete removes a work entry. Only the owner or an admin may delete.
func (s *WorklogService) Delete(ctx context.Context, actor domain.Actor, entryID string) error {
	entry, err := s.ownedEntry(ctx, actor, entryID)
	if err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, entry.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("work entry", map[string]any{"work_entry_id": entryID})
		}
		return err
	}
	return nil
}

func (s *WorklogService) tenantEntry(ctx context.Context, actor domain.Actor, entryID string) (*domain.WorkEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("work entry", map[string]any{"work_entry_id": entryID})
		}
		return nil, err
	}
	if entry.TenantID != actor.TenantID {
		return nil, errorutil.NewNotFound("work entry", map[string]any{"work_entry_id": entryID})
	}
	return entry, nil
}

func (s *WorklogService) ownedEntry(ctx context.Context, actor domain.Actor, entryID string) (*domain.WorkEntry, error) {
	entry, err := s.tenantEntry(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, errorutil.NewForbidden("only the owner or an admin may change this work entry")
	}
	return entry, nil
}

func (s *WorklogService) repoFilter(actor domain.Actor, filter WorkEntryListFilter) repository.WorkEntryFilter {
	return repository.WorkEntryFilter{
		TenantID: actor.TenantID,
		TicketID: filter.TicketID,
		UserID:   filter.UserID,
		From:     filter.From,
		To:       filter.To,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
}
