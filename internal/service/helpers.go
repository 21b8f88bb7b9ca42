package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
	"github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// loadTicket fetches a ticket visible to the actor's tenant. Tickets of other
// tenants are reported as missing.
func loadTicket(ctx context.Context, tickets repository.TicketRepository, tenantID, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	if tenantID != "" && ticket.TenantID != tenantID {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func eventActor(actor domain.Actor) events.Actor {
	return events.Actor{UserID: actor.UserID, Role: actor.Role}
}

func changedBy(actor domain.Actor) *string {
	if actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func recordHistory(ctx context.Context, history repository.TicketHistoryRepository, actor domain.Actor, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if history == nil {
		return nil
	}
	return history.Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: changedBy(actor),
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
	})
}

func nopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func timePtr(t time.Time) *time.Time {
	return &t
}
