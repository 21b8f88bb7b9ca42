package service

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-timekeeper/internal/clock"
	"github.com/spec-kit/sla-timekeeper/internal/config"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/events"
	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
)

// NotificationService delivers SLA notifications. Each escalation level is sent at
// most once per ticket and type, tracked in the escalation ledger.
type NotificationService struct {
	dispatcher events.Dispatcher
	ledger     repository.EscalationLedger
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NotificationDependencies bundles collaborators for notifications.
type NotificationDependencies struct {
	Dispatcher events.Dispatcher
	Ledger     repository.EscalationLedger
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Config     config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &NotificationService{
		dispatcher: deps.Dispatcher,
		ledger:     deps.Ledger,
		clock:      clk,
		metrics:    deps.Metrics,
		logger:     nopLogger(deps.Logger),
		cfg:        deps.Config,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSlaEscalationCrossed, n.handleEscalationCrossed)
	n.dispatcher.Subscribe(events.EventSlaBreached, n.handleSlaBreached)
	n.dispatcher.Subscribe(events.EventTimerStopped, n.handleTimerStopped)
}

func (n *NotificationService) handleEscalationCrossed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SlaEscalationCrossedPayload)
	if !ok {
		n.logger.Warn("unexpected escalation payload", zap.String("ticket_id", event.TicketID))
		return nil
	}
	escalation := payload.Escalation

	if n.ledger != nil {
		first, err := n.ledger.MarkFired(ctx, escalation, n.clock.Now())
		if err != nil {
			return err
		}
		if !first {
			n.logger.Debug("escalation already notified",
				zap.String("ticket_id", escalation.TicketID),
				zap.Int("level", escalation.Level),
				zap.String("escalation_type", string(escalation.EscalationType)))
			return nil
		}
	}

	n.logger.Info("SlaEscalationCrossed",
		zap.String("ticket_id", escalation.TicketID),
		zap.Int("level", escalation.Level),
		zap.String("escalation_type", string(escalation.EscalationType)),
		zap.Int("threshold_percent", escalation.ThresholdPercent),
		zap.Strings("notify_user_ids", escalation.NotifyUserIDs))
	if err := n.deliverEscalation(ctx, event, escalation); err != nil {
		n.logger.Warn("escalation notification failed",
			zap.String("ticket_id", escalation.TicketID),
			zap.Int("level", escalation.Level),
			zap.Error(err))
		if n.ledger != nil {
			if forgetErr := n.ledger.Forget(ctx, escalation); forgetErr != nil {
				n.logger.Error("release escalation ledger entry failed",
					zap.String("ticket_id", escalation.TicketID),
					zap.Int("level", escalation.Level),
					zap.Error(forgetErr))
			}
		}
		return err
	}
	n.metrics.Inc(observability.CounterEscalationNotified)
	return nil
}

func (n *NotificationService) deliverEscalation(ctx context.Context, event events.Event, escalation domain.CrossedEscalation) error {
	if err := n.sendEmailNotificationStub(ctx, event, escalation.NotifyUserIDs); err != nil {
		return err
	}
	return n.sendWebhookNotificationStub(ctx, event)
}

func (n *NotificationService) handleSlaBreached(ctx context.Context, event events.Event) error {
	n.logger.Info("SlaBreached", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	return n.sendWebhookNotificationStub(ctx, event)
}

func (n *NotificationService) handleTimerStopped(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TimerStoppedPayload)
	if !ok {
		return nil
	}
	n.logger.Debug("TimerStopped",
		zap.String("ticket_id", event.TicketID),
		zap.String("user_id", payload.UserID),
		zap.Duration("duration", time.Duration(payload.DurationMs)*time.Millisecond))
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event, recipients []string) error {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || len(recipients) == 0 {
		return nil
	}
	if _, err := mail.ParseAddress(n.cfg.EmailFrom); err != nil {
		return fmt.Errorf("email notification: sender %q: %w", n.cfg.EmailFrom, err)
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Strings("to", recipients),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return nil
	}
	target, err := url.Parse(n.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("webhook notification: %w", err)
	}
	if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return fmt.Errorf("webhook notification: unsupported url %q", n.cfg.WebhookURL)
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", target.String()),
		zap.String("ticket_id", event.TicketID),
		zap.String("event_type", string(event.Type)))
	return nil
}
