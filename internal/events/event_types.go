package events

import (
	"time"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTimerStarted          EventType = "timer_started"
	EventTimerPaused           EventType = "timer_paused"
	EventTimerResumed          EventType = "timer_resumed"
	EventTimerStopped          EventType = "timer_stopped"
	EventWorkEntryCreated      EventType = "work_entry_created"
	EventTicketPriorityChanged EventType = "ticket_priority_changed"
	EventSlaBreached           EventType = "sla_breached"
	EventSlaEscalationCrossed  EventType = "sla_escalation_crossed"
)

// Actor encapsulates actor metadata for an event. Empty for system-triggered events.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TimerPayload describes a timer transition.
type TimerPayload struct {
	UserID        string     `json:"user_id"`
	StartedAt     time.Time  `json:"started_at"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	TotalPausedMs int64      `json:"total_paused_ms"`
}

// TimerStoppedPayload carries the finalized timing of a stopped timer.
type TimerStoppedPayload struct {
	UserID        string    `json:"user_id"`
	DurationMs    int64     `json:"duration_ms"`
	TotalPausedMs int64     `json:"total_paused_ms"`
	StoppedAt     time.Time `json:"stopped_at"`
}

// WorkEntryCreatedPayload payload.
type WorkEntryCreatedPayload struct {
	WorkEntryID     string `json:"work_entry_id"`
	UserID          string `json:"user_id"`
	DurationMinutes int    `json:"duration_minutes"`
	IsBillable      bool   `json:"is_billable"`
}

// TicketPriorityChangedPayload payload.
type TicketPriorityChangedPayload struct {
	OldPriority        domain.TicketPriority `json:"old_priority"`
	NewPriority        domain.TicketPriority `json:"new_priority"`
	SlaResponseDueAt   *time.Time            `json:"sla_response_due_at,omitempty"`
	SlaResolutionDueAt *time.Time            `json:"sla_resolution_due_at,omitempty"`
}

// SlaBreachedPayload payload.
type SlaBreachedPayload struct {
	ResponseBreached   bool      `json:"response_breached"`
	ResolutionBreached bool      `json:"resolution_breached"`
	ObservedAt         time.Time `json:"observed_at"`
}

// SlaEscalationCrossedPayload wraps one crossed escalation level.
type SlaEscalationCrossedPayload struct {
	Escalation domain.CrossedEscalation `json:"escalation"`
}
