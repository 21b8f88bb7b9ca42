package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
)

// PercentElapsed reports how much of the ticket's response or resolution budget
// has been used at now, as a percentage measured from ticket creation.
//
// The second result is false when the clock no longer runs: response after a
// first response, resolution after resolve, or no due date at all. A due date at
// or before creation yields +Inf.
func PercentElapsed(ticket *domain.Ticket, now time.Time, escalationType domain.EscalationType) (float64, bool) {
	var due *time.Time
	switch escalationType.Normalize() {
	case domain.EscalationTypeResponse:
		if ticket.FirstResponseAt != nil {
			return 0, false
		}
		due = ticket.SlaResponseDueAt
	case domain.EscalationTypeResolution:
		if ticket.ResolvedAt != nil {
			return 0, false
		}
		due = ticket.SlaResolutionDueAt
	default:
		return 0, false
	}
	if due == nil {
		return 0, false
	}

	budget := due.Sub(ticket.CreatedAt)
	if budget <= 0 {
		return math.Inf(1), true
	}
	return float64(now.Sub(ticket.CreatedAt)) / float64(budget) * 100, true
}

// LevelsCrossed returns the escalations of the given type whose threshold has been
// reached, ordered by threshold and then level.
func LevelsCrossed(escalations []domain.SlaEscalation, percent float64, escalationType domain.EscalationType) []domain.SlaEscalation {
	wanted := escalationType.Normalize()
	var matching []domain.SlaEscalation
	for _, escalation := range escalations {
		if escalation.EscalationType.Normalize() == wanted {
			matching = append(matching, escalation)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].ThresholdPercent != matching[j].ThresholdPercent {
			return matching[i].ThresholdPercent < matching[j].ThresholdPercent
		}
		return matching[i].Level < matching[j].Level
	})

	crossed := make([]domain.SlaEscalation, 0, len(matching))
	for _, escalation := range matching {
		if percent < float64(escalation.ThresholdPercent) {
			break
		}
		crossed = append(crossed, escalation)
	}
	return crossed
}

// CrossedEscalations evaluates both clocks of a ticket against a definition's ladder.
func CrossedEscalations(ticket *domain.Ticket, def *domain.SlaDefinition, now time.Time) []domain.CrossedEscalation {
	if def == nil || len(def.Escalations) == 0 {
		return nil
	}
	var out []domain.CrossedEscalation
	for _, escalationType := range []domain.EscalationType{domain.EscalationTypeResponse, domain.EscalationTypeResolution} {
		percent, ok := PercentElapsed(ticket, now, escalationType)
		if !ok {
			continue
		}
		for _, escalation := range LevelsCrossed(def.Escalations, percent, escalationType) {
			out = append(out, domain.CrossedEscalation{
				TicketID:         ticket.ID,
				TenantID:         ticket.TenantID,
				Level:            escalation.Level,
				EscalationType:   escalationType,
				ThresholdPercent: escalation.ThresholdPercent,
				PercentElapsed:   percent,
				NotifyUserIDs:    append([]string(nil), escalation.NotifyUserIDs...),
			})
		}
	}
	return out
}

// EscalationService hands crossed escalation levels to the notification collaborator.
// It does not remember what was already sent; the collaborator de-duplicates.
type EscalationService struct {
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewEscalationService constructs the service.
func NewEscalationService(dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger) *EscalationService {
	return &EscalationService{dispatcher: dispatcher, metrics: metrics, logger: nopLogger(logger)}
}

// Evaluate publishes one event per crossed level and returns them.
func (s *EscalationService) Evaluate(ctx context.Context, ticket *domain.Ticket, def *domain.SlaDefinition, now time.Time) []domain.CrossedEscalation {
	crossed := CrossedEscalations(ticket, def, now)
	for _, escalation := range crossed {
		s.metrics.Inc(observability.CounterEscalationCrossed)
		publish(ctx, s.dispatcher, s.logger, now, events.Event{
			Type:     events.EventSlaEscalationCrossed,
			TenantID: ticket.TenantID,
			TicketID: ticket.ID,
			Payload:  events.SlaEscalationCrossedPayload{Escalation: escalation},
		})
	}
	return crossed
}
