package dto

import (
	"time"

	"github.com/spec-kit/sla-timekeeper/internal/domain"
)

// TimerResponse describes a timer and its live elapsed time.
type TimerResponse struct {
	TicketID      string            `json:"ticket_id"`
	UserID        string            `json:"user_id,omitempty"`
	State         domain.TimerState `json:"state"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	PausedAt      *time.Time        `json:"paused_at,omitempty"`
	TotalPausedMs int64             `json:"total_paused_ms"`
	ElapsedMs     int64             `json:"elapsed_ms"`
}

// StopTimerResponse is the finalized timing plus the draft to confirm.
type StopTimerResponse struct {
	DurationMs    int64             `json:"duration_ms"`
	TotalPausedMs int64             `json:"total_paused_ms"`
	StoppedAt     time.Time         `json:"stopped_at"`
	Draft         WorkEntryDraftDTO `json:"draft"`
}
