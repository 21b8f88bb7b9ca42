package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusWaiting    TicketStatus = "waiting"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketPriority selects the SLA budget a ticket is measured against.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Normalize lowercases the priority and maps an unset value to medium.
func (p TicketPriority) Normalize() TicketPriority {
	normalized := TicketPriority(strings.ToLower(strings.TrimSpace(string(p))))
	if normalized == "" {
		return TicketPriorityMedium
	}
	return normalized
}

// Valid reports whether p (after normalization) is a known priority.
func (p TicketPriority) Valid() bool {
	switch p.Normalize() {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Ticket carries the subset of ticket state the SLA engine reads and writes.
// Everything else about a ticket is owned by the ticket CRUD layer.
type Ticket struct {
	ID                 string
	TenantID           string
	TicketNumber       string
	Title              string
	Status             TicketStatus
	Priority           TicketPriority
	SlaDefinitionID    *string
	FirstResponseAt    *time.Time
	SlaResponseDueAt   *time.Time
	SlaResolutionDueAt *time.Time
	SlaBreached        bool
	ResolvedAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SlaManaged reports whether the ticket has due dates to be measured against.
func (t *Ticket) SlaManaged() bool {
	return t.SlaResponseDueAt != nil || t.SlaResolutionDueAt != nil
}

// IsResolved reports whether resolution has been recorded.
func (t *Ticket) IsResolved() bool {
	return t.ResolvedAt != nil
}
