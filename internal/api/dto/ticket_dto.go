package dto

import (
	"time"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// TicketSlaResponse exposes the SLA fields of a ticket.
type TicketSlaResponse struct {
	ID                 string                `json:"id"`
	TicketNumber       string                `json:"ticket_number,omitempty"`
	Status             domain.TicketStatus   `json:"status"`
	Priority           domain.TicketPriority `json:"priority"`
	SlaDefinitionID    *string               `json:"sla_definition_id"`
	FirstResponseAt    *time.Time            `json:"first_response_at"`
	SlaResponseDueAt   *time.Time            `json:"sla_response_due_at"`
	SlaResolutionDueAt *time.Time            `json:"sla_resolution_due_at"`
	SlaBreached        bool                  `json:"sla_breached"`
	ResolvedAt         *time.Time            `json:"resolved_at"`
	CreatedAt          time.Time             `json:"created_at"`
}

// ChangePriorityRequest payload.
type ChangePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// AttachSlaRequest payload. An empty body uses the assigned or default definition.
type AttachSlaRequest struct {
	SlaDefinitionID *string `json:"sla_definition_id"`
}

// FirstResponseRequest payload. A missing responded_at means now.
type FirstResponseRequest struct {
	RespondedAt *time.Time `json:"responded_at"`
}

// TicketHistoryResponse audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}
