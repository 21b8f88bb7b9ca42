package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/config"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/repository/memory"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) MarkFired(ctx context.Context, escalation domain.CrossedEscalation, firedAt time.Time) (bool, error) {
	args := m.Called(ctx, escalation, firedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) Forget(ctx context.Context, escalation domain.CrossedEscalation) error {
	return m.Called(ctx, escalation).Error(0)
}

func crossedEvent(level int) events.Event {
	return events.Event{
		Type:     events.EventSlaEscalationCrossed,
		TenantID: tenantID,
		TicketID: "k-1",
		Payload: events.SlaEscalationCrossedPayload{Escalation: domain.CrossedEscalation{
			TicketID:       "k-1",
			TenantID:       tenantID,
			Level:          level,
			EscalationType: domain.EscalationTypeResponse,
			NotifyUserIDs:  []string{"lead"},
		}},
	}
}

func TestNotificationDeduplicatesThroughLedger(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("MarkFired", mock.Anything, mock.MatchedBy(func(e domain.CrossedEscalation) bool { return e.Level == 1 }), t0).
		Return(true, nil).Once()
	ledger.On("MarkFired", mock.Anything, mock.MatchedBy(func(e domain.CrossedEscalation) bool { return e.Level == 1 }), t0).
		Return(false, nil).Once()

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	svc := NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Clock:      clock.NewManual(t0),
		Metrics:    metrics,
		Logger:     zap.NewNop(),
	})
	svc.RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), crossedEvent(1)))
	require.NoError(t, dispatcher.Publish(context.Background(), crossedEvent(1)))

	assert.Equal(t, int64(1), metrics.Counter(observability.CounterEscalationNotified))
	ledger.AssertExpectations(t)
}

func TestNotificationSurfacesLedgerErrors(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("MarkFired", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Metrics:    metrics,
	}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), crossedEvent(2))
	assert.EqualError(t, err, "redis down")
	assert.Zero(t, metrics.Counter(observability.CounterEscalationNotified))
}

func TestNotificationReleasesLedgerWhenDeliveryFails(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("MarkFired", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()
	ledger.On("Forget", mock.Anything, mock.MatchedBy(func(e domain.CrossedEscalation) bool { return e.Level == 3 })).
		Return(nil).Once()

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Clock:      clock.NewManual(t0),
		Metrics:    metrics,
		Config:     config.NotificationConfig{WebhookURL: "ftp://hooks.internal/sla"},
	}).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), crossedEvent(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook notification")
	assert.Zero(t, metrics.Counter(observability.CounterEscalationNotified))
	ledger.AssertExpectations(t)
}

func TestNotificationRetriesAfterFailedDelivery(t *testing.T) {
	ledger := memory.NewLedger()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Clock:      clock.NewManual(t0),
		Metrics:    metrics,
		Config:     config.NotificationConfig{EmailFrom: "not an address"},
	}).RegisterHandlers()

	require.Error(t, dispatcher.Publish(context.Background(), crossedEvent(1)))

	first, err := ledger.MarkFired(context.Background(), crossedEvent(1).Payload.(events.SlaEscalationCrossedPayload).Escalation, t0)
	require.NoError(t, err)
	assert.True(t, first, "failed delivery must not keep the level marked as fired")
}

func TestNotificationDeliversWithValidEndpoints(t *testing.T) {
	ledger := new(MockLedger)
	ledger.On("MarkFired", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(NotificationDependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Clock:      clock.NewManual(t0),
		Metrics:    metrics,
		Config: config.NotificationConfig{
			EmailFrom:  "sla@example.com",
			WebhookURL: "https://hooks.example.com/sla",
		},
	}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), crossedEvent(1)))
	assert.Equal(t, int64(1), metrics.Counter(observability.CounterEscalationNotified))
	ledger.AssertNotCalled(t, "Forget", mock.Anything, mock.Anything)
}
