package domain

import "time"

const millisPerMinute = int64(time.Minute / time.Millisecond)

// WorkEntry is a durable record of confirmed, described work on a ticket.
type WorkEntry struct {
	ID              string
	TenantID        string
	TicketID        string
	UserID          string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	PausedMinutes   int
	IsBillable      bool
	HourlyRate      *int // cents; nil when the entry carries no rate
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WorkEntryDraft is the editable result of stopping a timer. It only becomes a
// WorkEntry once confirmed with a description; discarding it drops the timing.
type WorkEntryDraft struct {
	TenantID        string
	TicketID        string
	UserID          string
	Description     string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	PausedMinutes   int
	IsBillable      bool
	HourlyRate      *int
}

// WorkSummary aggregates work entries.
type WorkSummary struct {
	EntryCount      int
	TotalMinutes    int
	BillableMinutes int
	TotalAmount     int64 // cents over billable entries with a rate
}

// BillableAmount is the entry value in cents, minutes/60 x rate rounded half up.
func BillableAmount(minutes, hourlyRateCents int) int64 {
	return floorDiv(int64(minutes)*int64(hourlyRateCents)+30, 60)
}

// Amount is what the entry contributes to a summary total.
func (e WorkEntry) Amount() int64 {
	if !e.IsBillable || e.HourlyRate == nil {
		return 0
	}
	return BillableAmount(e.DurationMinutes, *e.HourlyRate)
}

// RoundMinutes converts milliseconds to whole minutes, rounding half up
// (90000ms -> 2, 89999ms -> 1).
func RoundMinutes(ms int64) int {
	return int(floorDiv(ms+millisPerMinute/2, millisPerMinute))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
