package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

func TestLedgerKey(t *testing.T) {
	key := LedgerKey("sla:escalation", domain.CrossedEscalation{
		TenantID:       "tenant-1",
		TicketID:       "ticket-9",
		EscalationType: "Resolution",
		Level:          2,
	})
	assert.Equal(t, "sla:escalation:tenant-1:ticket-9:resolution:2", key)
}

func TestLedgerKeyDefaultsType(t *testing.T) {
	key := LedgerKey("p", domain.CrossedEscalation{TenantID: "t", TicketID: "k", Level: 1})
	assert.Equal(t, "p:t:k:response:1", key)
}
