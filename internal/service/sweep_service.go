package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
)

// SweepService periodically re-evaluates every open, SLA managed ticket.
type SweepService struct {
	tickets   repository.TicketRepository
	sla       *SlaService
	clock     clock.Clock
	batchSize int
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// SweepDependencies bundles collaborators for the sweep.
type SweepDependencies struct {
	TicketRepo repository.TicketRepository
	Sla        *SlaService
	Clock      clock.Clock
	BatchSize  int
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned     int
	Breached    int
	Escalations int
	Failed      int
}

// NewSweepService constructs the service.
func NewSweepService(deps SweepDependencies) *SweepService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	batch := deps.BatchSize
	if batch <= 0 {
		batch = 200
	}
	return &SweepService{
		tickets:   deps.TicketRepo,
		sla:       deps.Sla,
		clock:     clk,
		batchSize: batch,
		metrics:   deps.Metrics,
		logger:    nopLogger(deps.Logger),
	}
}

// Run pages through open tickets and evaluates each one at a single instant.
// Per-ticket failures are logged and counted; the sweep keeps going.
func (s *SweepService) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.clock.Now()
	definitions := newDefinitionCache(s.sla)

	filter := repository.SlaOpenFilter{Limit: s.batchSize}
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		batch, err := s.tickets.ListSlaOpen(ctx, filter)
		if err != nil {
			return report, err
		}
		for i := range batch {
			ticket := &batch[i]
			report.Scanned++
			wasBreached := ticket.SlaBreached

			def, err := definitions.get(ctx, ticket)
			if err != nil {
				report.Failed++
				s.logger.Warn("resolve sla definition failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				continue
			}
			_, crossed, err := s.sla.Sweep(ctx, ticket, def, now)
			if err != nil {
				report.Failed++
				s.logger.Warn("sla sweep of ticket failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
				continue
			}
			if ticket.SlaBreached && !wasBreached {
				report.Breached++
			}
			report.Escalations += len(crossed)
		}
		if len(batch) < filter.Limit {
			break
		}
		filter.AfterID = batch[len(batch)-1].ID
	}

	s.metrics.Inc(observability.CounterSweepRuns)
	s.logger.Info("sla sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("breached", report.Breached),
		zap.Int("escalations", report.Escalations),
		zap.Int("failed", report.Failed))
	return report, nil
}

// definitionCache memoizes definitions for the duration of one sweep.
type definitionCache struct {
	sla       *SlaService
	byID      map[string]*domain.SlaDefinition
	byTenant  map[string]*domain.SlaDefinition
	noDefault map[string]bool
}

func newDefinitionCache(sla *SlaService) *definitionCache {
	return &definitionCache{
		sla:       sla,
		byID:      map[string]*domain.SlaDefinition{},
		byTenant:  map[string]*domain.SlaDefinition{},
		noDefault: map[string]bool{},
	}
}

func (c *definitionCache) get(ctx context.Context, ticket *domain.Ticket) (*domain.SlaDefinition, error) {
	if ticket.SlaDefinitionID != nil {
		if def, ok := c.byID[*ticket.SlaDefinitionID]; ok {
			return def, nil
		}
	} else {
		if def, ok := c.byTenant[ticket.TenantID]; ok {
			return def, nil
		}
		if c.noDefault[ticket.TenantID] {
			return nil, nil
		}
	}

	def, err := c.sla.ResolveDefinition(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if def == nil {
		if ticket.SlaDefinitionID != nil {
			return nil, errors.New("sla definition missing")
		}
		c.noDefault[ticket.TenantID] = true
		return nil, nil
	}
	if ticket.SlaDefinitionID != nil {
		c.byID[*ticket.SlaDefinitionID] = def
	} else {
		c.byTenant[ticket.TenantID] = def
	}
	return def, nil
}
