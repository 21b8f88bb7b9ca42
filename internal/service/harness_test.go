package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/repository/memory"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

const tenantID = "tenant-a"

type harness struct {
	clock      *clock.Manual
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	timers     *memory.TimerStore
	tickets    *memory.TicketStore
	entries    *memory.WorkEntryStore
	history    *memory.HistoryStore
	slas       *memory.SlaStore
	ledger     *memory.Ledger

	timer         *TimerService
	worklog       *WorklogService
	escalation    *EscalationService
	sla           *SlaService
	slaDefinition *SlaDefinitionService

	mu        sync.Mutex
	published []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:      clock.NewManual(t0),
		dispatcher: events.NewInMemoryDispatcher(),
		metrics:    observability.NewMetrics(),
		timers:     memory.NewTimerStore(),
		tickets:    memory.NewTicketStore(),
		entries:    memory.NewWorkEntryStore(),
		history:    memory.NewHistoryStore(),
		slas:       memory.NewSlaStore(),
		ledger:     memory.NewLedger(),
	}
	for _, eventType := range []events.EventType{
		events.EventTimerStarted,
		events.EventTimerPaused,
		events.EventTimerResumed,
		events.EventTimerStopped,
		events.EventWorkEntryCreated,
		events.EventTicketPriorityChanged,
		events.EventSlaBreached,
		events.EventSlaEscalationCrossed,
	} {
		h.dispatcher.Subscribe(eventType, func(ctx context.Context, e events.Event) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.published = append(h.published, e)
			return nil
		})
	}

	logger := zap.NewNop()
	h.timer = NewTimerService(TimerDependencies{
		TimerRepo:  h.timers,
		TicketRepo: h.tickets,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Metrics:    h.metrics,
		Logger:     logger,
	})
	h.worklog = NewWorklogService(WorklogDependencies{
		WorkEntryRepo: h.entries,
		TicketRepo:    h.tickets,
		HistoryRepo:   h.history,
		Dispatcher:    h.dispatcher,
		Clock:         h.clock,
		Metrics:       h.metrics,
		Logger:        logger,
	})
	h.escalation = NewEscalationService(h.dispatcher, h.metrics, logger)
	h.sla = NewSlaService(SlaDependencies{
		TicketRepo:  h.tickets,
		SlaRepo:     h.slas,
		HistoryRepo: h.history,
		Escalations: h.escalation,
		Dispatcher:  h.dispatcher,
		Clock:       h.clock,
		Metrics:     h.metrics,
		Logger:      logger,
	})
	h.slaDefinition = NewSlaDefinitionService(h.slas, logger)
	return h
}

func (h *harness) eventsOf(eventType events.EventType) []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Event
	for _, e := range h.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) ticket(t *testing.T, priority domain.TicketPriority) domain.Ticket {
	t.Helper()
	return h.tickets.Put(domain.Ticket{
		TenantID:  tenantID,
		Title:     "printer on fire",
		Priority:  priority,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	})
}

func (h *harness) defaultSla(t *testing.T, escalations ...EscalationInput) *domain.SlaDefinition {
	t.Helper()
	ctx := context.Background()
	seed := DefaultSeed()
	seed.Escalations = escalations
	_, err := h.slaDefinition.Seed(ctx, tenantID, []SeedDefinition{seed})
	if err != nil {
		t.Fatalf("seed sla: %v", err)
	}
	def, err := h.slas.GetDefault(ctx, tenantID)
	if err != nil {
		t.Fatalf("load default sla: %v", err)
	}
	return def
}

func agent(userID string) domain.Actor {
	return domain.Actor{UserID: userID, TenantID: tenantID, Role: domain.RoleAgent}
}

func admin(userID string) domain.Actor {
	return domain.Actor{UserID: userID, TenantID: tenantID, Role: domain.RoleAdmin}
}
