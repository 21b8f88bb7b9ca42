package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypePriority      TicketChangeType = "PRIORITY_CHANGE"
	ChangeTypeSlaAttached   TicketChangeType = "SLA_ATTACHED"
	ChangeTypeFirstResponse TicketChangeType = "FIRST_RESPONSE"
	ChangeTypeSlaBreached   TicketChangeType = "SLA_BREACHED"
	ChangeTypeResolved      TicketChangeType = "RESOLVED"
	ChangeTypeWorkLogged    TicketChangeType = "WORK_LOGGED"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID          string
	TicketID    string
	ChangedByID *string
	ChangeType  TicketChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
