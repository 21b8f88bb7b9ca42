package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
)

func responseTicket(due time.Duration) *domain.Ticket {
	responseDue := t0.Add(due)
	return &domain.Ticket{ID: "k-1", TenantID: tenantID, CreatedAt: t0, SlaResponseDueAt: &responseDue}
}

func TestEscalationThresholdBoundary(t *testing.T) {
	ladder := []domain.SlaEscalation{{Level: 1, ThresholdPercent: 80, EscalationType: domain.EscalationTypeResponse}}
	ticket := responseTicket(100 * time.Minute)

	percent, ok := PercentElapsed(ticket, t0.Add(79*time.Minute), domain.EscalationTypeResponse)
	require.True(t, ok)
	assert.Empty(t, LevelsCrossed(ladder, percent, domain.EscalationTypeResponse))

	percent, ok = PercentElapsed(ticket, t0.Add(80*time.Minute), domain.EscalationTypeResponse)
	require.True(t, ok)
	crossed := LevelsCrossed(ladder, percent, domain.EscalationTypeResponse)
	require.Len(t, crossed, 1)
	assert.Equal(t, 1, crossed[0].Level)
}

func TestLevelsCrossedOrderingAndFiltering(t *testing.T) {
	ladder := []domain.SlaEscalation{
		{Level: 3, ThresholdPercent: 100, EscalationType: domain.EscalationTypeResponse},
		{Level: 2, ThresholdPercent: 50, EscalationType: domain.EscalationTypeResponse},
		{Level: 1, ThresholdPercent: 50, EscalationType: domain.EscalationTypeResponse},
		{Level: 1, ThresholdPercent: 10, EscalationType: domain.EscalationTypeResolution},
	}

	crossed := LevelsCrossed(ladder, 75, domain.EscalationTypeResponse)
	require.Len(t, crossed, 2)
	assert.Equal(t, 1, crossed[0].Level, "equal thresholds fall back to level order")
	assert.Equal(t, 2, crossed[1].Level)

	crossed = LevelsCrossed(ladder, 75, domain.EscalationTypeResolution)
	require.Len(t, crossed, 1)
	assert.Equal(t, domain.EscalationTypeResolution, crossed[0].EscalationType)

	assert.Len(t, LevelsCrossed(ladder, math.Inf(1), domain.EscalationTypeResponse), 3)
}

func TestPercentElapsedEdgeCases(t *testing.T) {
	zeroBudget := responseTicket(0)
	percent, ok := PercentElapsed(zeroBudget, t0, domain.EscalationTypeResponse)
	require.True(t, ok)
	assert.True(t, math.IsInf(percent, 1))

	negative := responseTicket(-time.Minute)
	percent, ok = PercentElapsed(negative, t0, domain.EscalationTypeResponse)
	require.True(t, ok)
	assert.True(t, math.IsInf(percent, 1))

	answered := responseTicket(time.Hour)
	responded := t0.Add(time.Minute)
	answered.FirstResponseAt = &responded
	_, ok = PercentElapsed(answered, t0.Add(2*time.Hour), domain.EscalationTypeResponse)
	assert.False(t, ok)

	_, ok = PercentElapsed(answered, t0, domain.EscalationTypeResolution)
	assert.False(t, ok, "no resolution due date")

	resolutionDue := t0.Add(time.Hour)
	resolved := t0.Add(time.Minute)
	closed := &domain.Ticket{CreatedAt: t0, SlaResolutionDueAt: &resolutionDue, ResolvedAt: &resolved}
	_, ok = PercentElapsed(closed, t0.Add(2*time.Hour), domain.EscalationTypeResolution)
	assert.False(t, ok)
}

func TestEscalationServicePublishesCrossedLevels(t *testing.T) {
	h := newHarness(t)
	def := &domain.SlaDefinition{Escalations: []domain.SlaEscalation{
		{Level: 1, ThresholdPercent: 50, EscalationType: domain.EscalationTypeResponse, NotifyUserIDs: []string{"lead"}},
		{Level: 2, ThresholdPercent: 90, EscalationType: domain.EscalationTypeResponse, NotifyUserIDs: []string{"manager"}},
	}}
	ticket := responseTicket(100 * time.Minute)

	crossed := h.escalation.Evaluate(context.Background(), ticket, def, t0.Add(60*time.Minute))

	require.Len(t, crossed, 1)
	assert.Equal(t, ticket.ID, crossed[0].TicketID)
	assert.InDelta(t, 60.0, crossed[0].PercentElapsed, 1e-9)

	published := h.eventsOf(events.EventSlaEscalationCrossed)
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.SlaEscalationCrossedPayload)
	assert.Equal(t, []string{"lead"}, payload.Escalation.NotifyUserIDs)

	assert.Empty(t, h.escalation.Evaluate(context.Background(), ticket, nil, t0.Add(time.Hour)))
}
