package dto

import (
	"time"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// BudgetsDTO holds minutes per priority.
type BudgetsDTO struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
	Urgent int `json:"urgent"`
}

// CreateSlaDefinitionRequest payload. IsActive defaults to true when omitted.
type CreateSlaDefinitionRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Response    BudgetsDTO `json:"response"`
	Resolution  BudgetsDTO `json:"resolution"`
	IsDefault   bool       `json:"is_default"`
	IsActive    *bool      `json:"is_active"`
}

// UpdateSlaDefinitionRequest payload.
type UpdateSlaDefinitionRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Response    *BudgetsDTO `json:"response"`
	Resolution  *BudgetsDTO `json:"resolution"`
	IsDefault   *bool       `json:"is_default"`
	IsActive    *bool       `json:"is_active"`
}

// CreateEscalationRequest payload.
type CreateEscalationRequest struct {
	Level            int                   `json:"level"`
	ThresholdPercent int                   `json:"threshold_percent"`
	EscalationType   domain.EscalationType `json:"escalation_type"`
	NotifyUserIDs    []string              `json:"notify_user_ids"`
}

// EscalationResponse representation.
type EscalationResponse struct {
	ID               string                `json:"id"`
	SlaDefinitionID  string                `json:"sla_definition_id"`
	Level            int                   `json:"level"`
	ThresholdPercent int                   `json:"threshold_percent"`
	EscalationType   domain.EscalationType `json:"escalation_type"`
	NotifyUserIDs    []string              `json:"notify_user_ids"`
	CreatedAt        time.Time             `json:"created_at"`
}

// SlaDefinitionResponse representation.
type SlaDefinitionResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Response    BudgetsDTO           `json:"response"`
	Resolution  BudgetsDTO           `json:"resolution"`
	IsDefault   bool                 `json:"is_default"`
	IsActive    bool                 `json:"is_active"`
	Escalations []EscalationResponse `json:"escalations"`
	CreatedAt   time.Time            `json:"created_at"`
}

// ClockStatus describes one SLA clock. Percent is omitted when the clock has
// stopped; Exhausted marks a zero or negative budget.
type ClockStatus struct {
	DueAt     *time.Time `json:"due_at"`
	Running   bool       `json:"running"`
	Percent   *float64   `json:"percent_elapsed,omitempty"`
	Exhausted bool       `json:"exhausted,omitempty"`
	Breached  bool       `json:"breached"`
}

// CrossedEscalationResponse representation.
type CrossedEscalationResponse struct {
	Level            int                   `json:"level"`
	EscalationType   domain.EscalationType `json:"escalation_type"`
	ThresholdPercent int                   `json:"threshold_percent"`
	NotifyUserIDs    []string              `json:"notify_user_ids"`
}

// SlaStatusResponse is the SLA position of a ticket.
type SlaStatusResponse struct {
	Ticket      TicketSlaResponse           `json:"ticket"`
	Managed     bool                        `json:"managed"`
	Response    ClockStatus                 `json:"response"`
	Resolution  ClockStatus                 `json:"resolution"`
	Crossed     []CrossedEscalationResponse `json:"crossed_escalations"`
	EvaluatedAt time.Time                   `json:"evaluated_at"`
}
