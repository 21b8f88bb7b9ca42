package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/config"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
)

func TestSweepLatchesBreachAndNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.defaultSla(t,
		EscalationInput{Level: 1, ThresholdPercent: 50, EscalationType: domain.EscalationTypeResponse, NotifyUserIDs: []string{"lead"}},
		EscalationInput{Level: 2, ThresholdPercent: 100, EscalationType: domain.EscalationTypeResponse, NotifyUserIDs: []string{"manager"}},
	)
	notifications := NewNotificationService(NotificationDependencies{
		Dispatcher: h.dispatcher,
		Ledger:     h.ledger,
		Clock:      h.clock,
		Metrics:    h.metrics,
		Logger:     zap.NewNop(),
		Config:     config.NotificationConfig{EmailFrom: "sla@example.com"},
	})
	notifications.RegisterHandlers()

	urgent := h.ticket(t, domain.TicketPriorityUrgent)
	_, err := h.sla.AttachSla(ctx, agent("u-1"), urgent.ID, nil)
	require.NoError(t, err)
	calm := h.ticket(t, domain.TicketPriorityLow)
	_, err = h.sla.AttachSla(ctx, agent("u-1"), calm.ID, nil)
	require.NoError(t, err)
	unmanaged := h.ticket(t, domain.TicketPriorityHigh)

	sweep := NewSweepService(SweepDependencies{
		TicketRepo: h.tickets,
		Sla:        h.sla,
		Clock:      h.clock,
		BatchSize:  1,
		Metrics:    h.metrics,
		Logger:     zap.NewNop(),
	})

	h.clock.Advance(16 * time.Minute)
	report, err := sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Breached)
	assert.Equal(t, 2, report.Escalations)
	assert.Zero(t, report.Failed)

	stored, err := h.tickets.GetByID(ctx, urgent.ID)
	require.NoError(t, err)
	assert.True(t, stored.SlaBreached)
	stored, err = h.tickets.GetByID(ctx, unmanaged.ID)
	require.NoError(t, err)
	assert.False(t, stored.SlaBreached)

	report, err = sweep.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Breached)
	assert.Equal(t, 2, report.Escalations)

	assert.Equal(t, int64(4), h.metrics.Counter(observability.CounterEscalationCrossed))
	assert.Equal(t, int64(2), h.metrics.Counter(observability.CounterEscalationNotified))
	assert.Equal(t, int64(2), h.metrics.Counter(observability.CounterSweepRuns))
}

func TestSweepHonoursCancellation(t *testing.T) {
	h := newHarness(t)
	sweep := NewSweepService(SweepDependencies{TicketRepo: h.tickets, Sla: h.sla, Clock: h.clock})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sweep.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
