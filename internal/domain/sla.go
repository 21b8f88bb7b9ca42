package domain

import (
	"strings"
	"time"
)

// PriorityBudgets holds a time budget in minutes for each ticket priority.
type PriorityBudgets struct {
	Low    int `yaml:"low"`
	Medium int `yaml:"medium"`
	High   int `yaml:"high"`
	Urgent int `yaml:"urgent"`
}

// For returns the budget for priority; unset priority means medium.
func (b PriorityBudgets) For(priority TicketPriority) (int, bool) {
	switch priority.Normalize() {
	case TicketPriorityLow:
		return b.Low, true
	case TicketPriorityMedium:
		return b.Medium, true
	case TicketPriorityHigh:
		return b.High, true
	case TicketPriorityUrgent:
		return b.Urgent, true
	}
	return 0, false
}

// Negative lists the priorities whose budget is below zero.
func (b PriorityBudgets) Negative() []TicketPriority {
	var out []TicketPriority
	if b.Low < 0 {
		out = append(out, TicketPriorityLow)
	}
	if b.Medium < 0 {
		out = append(out, TicketPriorityMedium)
	}
	if b.High < 0 {
		out = append(out, TicketPriorityHigh)
	}
	if b.Urgent < 0 {
		out = append(out, TicketPriorityUrgent)
	}
	return out
}

// Standard budgets, matching the tenant bootstrap definition.
var (
	DefaultResponseBudgets   = PriorityBudgets{Low: 480, Medium: 240, High: 60, Urgent: 15}
	DefaultResolutionBudgets = PriorityBudgets{Low: 4320, Medium: 1440, High: 480, Urgent: 120}
)

// SlaDefinition is a tenant-scoped set of response and resolution budgets.
type SlaDefinition struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	Response    PriorityBudgets
	Resolution  PriorityBudgets
	IsDefault   bool
	IsActive    bool
	Escalations []SlaEscalation
	CreatedAt   time.Time
}

// EscalationType selects which SLA clock an escalation watches.
type EscalationType string

const (
	EscalationTypeResponse   EscalationType = "response"
	EscalationTypeResolution EscalationType = "resolution"
)

// Normalize lowercases the type; unset means response.
func (t EscalationType) Normalize() EscalationType {
	normalized := EscalationType(strings.ToLower(strings.TrimSpace(string(t))))
	if normalized == "" {
		return EscalationTypeResponse
	}
	return normalized
}

// Valid reports whether t is a known escalation type.
func (t EscalationType) Valid() bool {
	switch t.Normalize() {
	case EscalationTypeResponse, EscalationTypeResolution:
		return true
	}
	return false
}

// SlaEscalation fires when ThresholdPercent of the relevant budget has elapsed.
type SlaEscalation struct {
	ID               string
	SlaDefinitionID  string
	Level            int
	ThresholdPercent int
	EscalationType   EscalationType
	NotifyUserIDs    []string
	CreatedAt        time.Time
}

// CrossedEscalation is handed to the notification collaborator, which is
// responsible for delivering it at most once per ticket, level, and type.
type CrossedEscalation struct {
	TicketID         string
	TenantID         string
	Level            int
	EscalationType   EscalationType
	ThresholdPercent int
	PercentElapsed   float64
	NotifyUserIDs    []string
}

// DueDates are the SLA deadlines computed for a ticket.
type DueDates struct {
	ResponseDueAt   time.Time
	ResolutionDueAt time.Time
}

// BreachState describes which SLA clocks are past due.
type BreachState struct {
	ResponseBreached   bool
	ResolutionBreached bool
}

// Any reports whether either clock is breached.
func (b BreachState) Any() bool {
	return b.ResponseBreached || b.ResolutionBreached
}
