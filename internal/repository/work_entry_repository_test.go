package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkEntryWhere(t *testing.T) {
	ticketID := "ticket-1"
	userID := "user-1"
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := workEntryWhere(WorkEntryFilter{
		TenantID: "tenant-1",
		TicketID: &ticketID,
		UserID:   &userID,
		From:     &from,
	})

	assert.Equal(t, "1=1 AND tenant_id=$1 AND ticket_id=$2 AND user_id=$3 AND start_time >= $4", where)
	assert.Equal(t, []any{"tenant-1", "ticket-1", "user-1", from}, args)
}

func TestWorkEntryWhereEmpty(t *testing.T) {
	where, args := workEntryWhere(WorkEntryFilter{})
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}
