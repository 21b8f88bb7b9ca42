package domain

import "time"

// TimerState is the lifecycle position of a (ticket, user) timer.
type TimerState string

const (
	TimerStateAbsent  TimerState = "absent"
	TimerStateRunning TimerState = "running"
	TimerStatePaused  TimerState = "paused"
)

// ActiveTimer is the persisted record of one running or paused timer.
// At most one exists per (TicketID, UserID).
type ActiveTimer struct {
	TicketID      string
	UserID        string
	TenantID      string
	StartedAt     time.Time
	PausedAt      *time.Time
	TotalPausedMs int64
	UpdatedAt     time.Time
}

// StopResult is the finalized timing handed to work-entry reconciliation.
type StopResult struct {
	DurationMs    int64
	TotalPausedMs int64
	StoppedAt     time.Time
}

// NewActiveTimer returns a running timer started at now.
func NewActiveTimer(tenantID, ticketID, userID string, now time.Time) *ActiveTimer {
	return &ActiveTimer{
		TicketID:  ticketID,
		UserID:    userID,
		TenantID:  tenantID,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// State returns running or paused; a nil timer is absent.
func (t *ActiveTimer) State() TimerState {
	if t == nil {
		return TimerStateAbsent
	}
	if t.PausedAt != nil {
		return TimerStatePaused
	}
	return TimerStateRunning
}

// OpenPauseMs is the length of the pause currently in progress, zero when running.
func (t *ActiveTimer) OpenPauseMs(now time.Time) int64 {
	if t.PausedAt == nil {
		return 0
	}
	return nonNegative(now.Sub(*t.PausedAt).Milliseconds())
}

// ElapsedMs is the worked time at now:
// (now - StartedAt) - TotalPausedMs - open pause. Never negative.
//
// Both the live display and Stop go through this method so what the user watched
// count up is what gets billed.
func (t *ActiveTimer) ElapsedMs(now time.Time) int64 {
	elapsed := now.Sub(t.StartedAt).Milliseconds() - t.TotalPausedMs - t.OpenPauseMs(now)
	return nonNegative(elapsed)
}

// Pause moves a running timer into the paused state.
func (t *ActiveTimer) Pause(now time.Time) bool {
	if t.PausedAt != nil {
		return false
	}
	pausedAt := now
	t.PausedAt = &pausedAt
	t.UpdatedAt = now
	return true
}

// Resume folds the open pause into TotalPausedMs and resumes counting.
func (t *ActiveTimer) Resume(now time.Time) bool {
	if t.PausedAt == nil {
		return false
	}
	t.TotalPausedMs += t.OpenPauseMs(now)
	t.PausedAt = nil
	t.UpdatedAt = now
	return true
}

// Finalize computes the stop result at now without mutating the timer.
// An open pause counts as paused time up to now.
func (t *ActiveTimer) Finalize(now time.Time) StopResult {
	return StopResult{
		DurationMs:    t.ElapsedMs(now),
		TotalPausedMs: t.TotalPausedMs + t.OpenPauseMs(now),
		StoppedAt:     now,
	}
}

func nonNegative(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
