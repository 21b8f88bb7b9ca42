package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// EscalationLedger remembers which escalation levels already fired for a ticket.
type EscalationLedger interface {
	// MarkFired records the escalation and reports whether this call was the first.
	MarkFired(ctx context.Context, escalation domain.CrossedEscalation, firedAt time.Time) (bool, error)
	// Forget drops a recorded escalation so it may fire again.
	Forget(ctx context.Context, escalation domain.CrossedEscalation) error
}

type redisEscalationLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisEscalationLedger builds a ledger on top of SETNX keys. A zero ttl keeps
// entries forever.
func NewRedisEscalationLedger(client *redis.Client, prefix string, ttl time.Duration) EscalationLedger {
	if prefix == "" {
		prefix = "sla:escalation"
	}
	return &redisEscalationLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *redisEscalationLedger) MarkFired(ctx context.Context, escalation domain.CrossedEscalation, firedAt time.Time) (bool, error) {
	return l.client.SetNX(ctx, l.key(escalation), firedAt.UTC().Format(time.RFC3339Nano), l.ttl).Result()
}

func (l *redisEscalationLedger) Forget(ctx context.Context, escalation domain.CrossedEscalation) error {
	return l.client.Del(ctx, l.key(escalation)).Err()
}

func (l *redisEscalationLedger) key(escalation domain.CrossedEscalation) string {
	return LedgerKey(l.prefix, escalation)
}

// LedgerKey is the Redis key for one (ticket, type, level) escalation.
func LedgerKey(prefix string, escalation domain.CrossedEscalation) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d",
		prefix,
		escalation.TenantID,
		escalation.TicketID,
		escalation.EscalationType.Normalize(),
		escalation.Level,
	)
}
