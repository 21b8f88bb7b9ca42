package server

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sla-timekeeper/internal/api/http"
	"github.com/spec-kit/sla-timekeeper/internal/api/http/handlers"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/config"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/persistence"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
	"github.com/spec-kit/sla-timekeeper/internal/service"
	"github.com/spec-kit/sla-timekeeper/internal/worker"
)

// Services groups the domain services built on top of Postgres and Redis.
type Services struct {
	Timers         *service.TimerService
	Worklog        *service.WorklogService
	Sla            *service.SlaService
	SlaDefinitions *service.SlaDefinitionService
	Sweep          *service.SweepService
	Notifications  *service.NotificationService
}

// Server owns connections, services and the HTTP app of one process.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	postgres *persistence.Postgres
	redis    *persistence.Redis
	app      *fiber.App

	Services Services
}

// Connect opens Postgres and Redis, optionally migrating the schema.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Postgres, *persistence.Redis, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return pg, persistence.NewRedis(cfg.Redis, logger), nil
}

// New wires repositories, services, notification handlers and routes.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	pg, rdb, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  observability.NewMetrics(),
		postgres: pg,
		redis:    rdb,
	}
	s.Services = BuildServices(cfg, pg, rdb, s.metrics, logger)
	s.Services.Notifications.RegisterHandlers()

	s.app = fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(s.app, logger, s.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(s.app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}, s.metrics),
		Timers:         handlers.NewTimersHandler(s.Services.Timers),
		WorkEntries:    handlers.NewWorkEntriesHandler(s.Services.Worklog),
		Sla:            handlers.NewSlaHandler(s.Services.Sla),
		SlaDefinitions: handlers.NewSlaDefinitionsHandler(s.Services.SlaDefinitions),
		AuthMiddleware: auth.NewAuthMiddleware(auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)),
	})
	return s, nil
}

// BuildServices constructs every domain service against the given stores.
func BuildServices(cfg *config.Config, pg *persistence.Postgres, rdb *persistence.Redis, metrics *observability.Metrics, logger *zap.Logger) Services {
	pool := pg.PoolHandle()
	tickets := repository.NewTicketRepository(pool)
	history := repository.NewTicketHistoryRepository(pool)
	slas := repository.NewSlaRepository(pool)
	dispatcher := events.NewInMemoryDispatcher()
	clk := clock.System()

	sla := service.NewSlaService(service.SlaDependencies{
		TicketRepo:  tickets,
		SlaRepo:     slas,
		HistoryRepo: history,
		Escalations: service.NewEscalationService(dispatcher, metrics, logger),
		Dispatcher:  dispatcher,
		Clock:       clk,
		Metrics:     metrics,
		Logger:      logger,
	})

	return Services{
		Timers: service.NewTimerService(service.TimerDependencies{
			TimerRepo:  repository.NewTimerRepository(pool),
			TicketRepo: tickets,
			Dispatcher: dispatcher,
			Clock:      clk,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Worklog: service.NewWorklogService(service.WorklogDependencies{
			WorkEntryRepo: repository.NewWorkEntryRepository(pool),
			TicketRepo:    tickets,
			HistoryRepo:   history,
			Dispatcher:    dispatcher,
			Clock:         clk,
			Metrics:       metrics,
			Logger:        logger,
		}),
		Sla:            sla,
		SlaDefinitions: service.NewSlaDefinitionService(slas, logger),
		Sweep: service.NewSweepService(service.SweepDependencies{
			TicketRepo: tickets,
			Sla:        sla,
			Clock:      clk,
			BatchSize:  cfg.Sweep.BatchSize,
			Metrics:    metrics,
			Logger:     logger,
		}),
		Notifications: service.NewNotificationService(service.NotificationDependencies{
			Dispatcher: dispatcher,
			Ledger:     repository.NewRedisEscalationLedger(rdb.Client, cfg.Notification.LedgerKeyPrefix, cfg.Notification.LedgerTTL()),
			Clock:      clk,
			Metrics:    metrics,
			Logger:     logger,
			Config:     cfg.Notification,
		}),
	}
}

// Run serves HTTP and the sweep scheduler until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := worker.StartSlaSweepScheduler(ctx, s.cfg.Sweep, s.Services.Sweep, s.redis, s.logger); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listening", zap.String("addr", s.cfg.App.Addr()))
		errCh <- s.app.Listen(s.cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down")
	return s.app.Shutdown()
}

// Close releases connections.
func (s *Server) Close() {
	s.redis.Close()
	s.postgres.Close()
}
