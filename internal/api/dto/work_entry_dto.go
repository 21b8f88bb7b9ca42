package dto

import "time"

// WorkEntryDraftDTO is the editable form of a stopped timer.
type WorkEntryDraftDTO struct {
	TicketID        string    `json:"ticket_id"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PausedMinutes   int       `json:"paused_minutes"`
	IsBillable      bool      `json:"is_billable"`
	HourlyRate      *int      `json:"hourly_rate,omitempty"`
}

// ConfirmWorkEntryRequest payload. IsBillable defaults to true when omitted.
type ConfirmWorkEntryRequest struct {
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PausedMinutes   int       `json:"paused_minutes"`
	IsBillable      *bool     `json:"is_billable"`
	HourlyRate      *int      `json:"hourly_rate"`
}

// UpdateWorkEntryRequest payload.
type UpdateWorkEntryRequest struct {
	Description *string `json:"description"`
	IsBillable  *bool   `json:"is_billable"`
	HourlyRate  *int    `json:"hourly_rate"`
}

// WorkEntryResponse representation.
type WorkEntryResponse struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	UserID          string    `json:"user_id"`
	Description     string    `json:"description"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	PausedMinutes   int       `json:"paused_minutes"`
	IsBillable      bool      `json:"is_billable"`
	HourlyRate      *int      `json:"hourly_rate"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WorkSummaryResponse totals. TotalAmount is in cents.
type WorkSummaryResponse struct {
	EntryCount      int   `json:"entry_count"`
	TotalMinutes    int   `json:"total_minutes"`
	BillableMinutes int   `json:"billable_minutes"`
	TotalAmount     int64 `json:"total_amount"`
}
