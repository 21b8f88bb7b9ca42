package handlers

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/sla-timekeeper/internal/api/dto"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/service"
	apperrors "github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

func parseTime(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	if pageSize > 500 {
		pageSize = 500
	}
	return pageSize, (page - 1) * pageSize
}

// pathID returns a UUID path parameter. A malformed id cannot name a stored
// row, so it is reported as a missing resource.
func pathID(c *fiber.Ctx, name, resource string) (string, error) {
	val := c.Params(name)
	if val == "" {
		return "", apperrors.NewValidationError(name+" required", nil)
	}
	if _, err := uuid.Parse(val); err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{name: val})
	}
	return val, nil
}

// optionalID checks an id supplied in a body or query string.
func optionalID(val *string, name, resource string) error {
	if val == nil || *val == "" {
		return nil
	}
	if _, err := uuid.Parse(*val); err != nil {
		return apperrors.NewNotFound(resource, map[string]any{name: *val})
	}
	return nil
}

func timerResponse(ticketID string, view *service.TimerView) dto.TimerResponse {
	resp := dto.TimerResponse{
		TicketID:  ticketID,
		State:     view.State,
		ElapsedMs: view.ElapsedMs,
	}
	if view.Timer != nil {
		startedAt := view.Timer.StartedAt
		resp.TicketID = view.Timer.TicketID
		resp.UserID = view.Timer.UserID
		resp.StartedAt = &startedAt
		resp.PausedAt = view.Timer.PausedAt
		resp.TotalPausedMs = view.Timer.TotalPausedMs
	}
	return resp
}

func draftDTO(draft domain.WorkEntryDraft) dto.WorkEntryDraftDTO {
	return dto.WorkEntryDraftDTO{
		TicketID:        draft.TicketID,
		Description:     draft.Description,
		StartTime:       draft.StartTime,
		EndTime:         draft.EndTime,
		DurationMinutes: draft.DurationMinutes,
		PausedMinutes:   draft.PausedMinutes,
		IsBillable:      draft.IsBillable,
		HourlyRate:      draft.HourlyRate,
	}
}

func workEntryResponse(entry *domain.WorkEntry) dto.WorkEntryResponse {
	return dto.WorkEntryResponse{
		ID:              entry.ID,
		TicketID:        entry.TicketID,
		UserID:          entry.UserID,
		Description:     entry.Description,
		StartTime:       entry.StartTime,
		EndTime:         entry.EndTime,
		DurationMinutes: entry.DurationMinutes,
		PausedMinutes:   entry.PausedMinutes,
		IsBillable:      entry.IsBillable,
		HourlyRate:      entry.HourlyRate,
		CreatedAt:       entry.CreatedAt,
		UpdatedAt:       entry.UpdatedAt,
	}
}

func workSummaryResponse(summary domain.WorkSummary) dto.WorkSummaryResponse {
	return dto.WorkSummaryResponse{
		EntryCount:      summary.EntryCount,
		TotalMinutes:    summary.TotalMinutes,
		BillableMinutes: summary.BillableMinutes,
		TotalAmount:     summary.TotalAmount,
	}
}

func ticketSlaResponse(ticket *domain.Ticket) dto.TicketSlaResponse {
	return dto.TicketSlaResponse{
		ID:                 ticket.ID,
		TicketNumber:       ticket.TicketNumber,
		Status:             ticket.Status,
		Priority:           ticket.Priority.Normalize(),
		SlaDefinitionID:    ticket.SlaDefinitionID,
		FirstResponseAt:    ticket.FirstResponseAt,
		SlaResponseDueAt:   ticket.SlaResponseDueAt,
		SlaResolutionDueAt: ticket.SlaResolutionDueAt,
		SlaBreached:        ticket.SlaBreached,
		ResolvedAt:         ticket.ResolvedAt,
		CreatedAt:          ticket.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	out := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, dto.TicketHistoryResponse{
			ID:          entry.ID,
			ChangedByID: entry.ChangedByID,
			ChangeType:  entry.ChangeType,
			OldValue:    entry.OldValue,
			NewValue:    entry.NewValue,
			CreatedAt:   entry.CreatedAt,
		})
	}
	return out
}

func clockStatus(due *time.Time, percent *float64, breached bool) dto.ClockStatus {
	status := dto.ClockStatus{DueAt: due, Running: percent != nil, Breached: breached}
	if percent == nil {
		return status
	}
	if math.IsInf(*percent, 1) {
		status.Exhausted = true
		return status
	}
	rounded := math.Round(*percent*100) / 100
	status.Percent = &rounded
	return status
}

func slaStatusResponse(status *service.SlaStatus) dto.SlaStatusResponse {
	resp := dto.SlaStatusResponse{
		Ticket:      ticketSlaResponse(status.Ticket),
		Managed:     status.Ticket.SlaManaged(),
		Response:    clockStatus(status.Ticket.SlaResponseDueAt, status.ResponsePercent, status.Breach.ResponseBreached),
		Resolution:  clockStatus(status.Ticket.SlaResolutionDueAt, status.ResolutionPercent, status.Breach.ResolutionBreached),
		Crossed:     make([]dto.CrossedEscalationResponse, 0, len(status.Crossed)),
		EvaluatedAt: status.EvaluatedAt,
	}
	for _, crossed := range status.Crossed {
		resp.Crossed = append(resp.Crossed, dto.CrossedEscalationResponse{
			Level:            crossed.Level,
			EscalationType:   crossed.EscalationType,
			ThresholdPercent: crossed.ThresholdPercent,
			NotifyUserIDs:    crossed.NotifyUserIDs,
		})
	}
	return resp
}

func budgetsDTO(b domain.PriorityBudgets) dto.BudgetsDTO {
	return dto.BudgetsDTO{Low: b.Low, Medium: b.Medium, High: b.High, Urgent: b.Urgent}
}

func budgetsFromDTO(b dto.BudgetsDTO) domain.PriorityBudgets {
	return domain.PriorityBudgets{Low: b.Low, Medium: b.Medium, High: b.High, Urgent: b.Urgent}
}

func escalationResponse(escalation *domain.SlaEscalation) dto.EscalationResponse {
	notify := escalation.NotifyUserIDs
	if notify == nil {
		notify = []string{}
	}
	return dto.EscalationResponse{
		ID:               escalation.ID,
		SlaDefinitionID:  escalation.SlaDefinitionID,
		Level:            escalation.Level,
		ThresholdPercent: escalation.ThresholdPercent,
		EscalationType:   escalation.EscalationType,
		NotifyUserIDs:    notify,
		CreatedAt:        escalation.CreatedAt,
	}
}

func slaDefinitionResponse(def *domain.SlaDefinition) dto.SlaDefinitionResponse {
	resp := dto.SlaDefinitionResponse{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
		Response:    budgetsDTO(def.Response),
		Resolution:  budgetsDTO(def.Resolution),
		IsDefault:   def.IsDefault,
		IsActive:    def.IsActive,
		Escalations: make([]dto.EscalationResponse, 0, len(def.Escalations)),
		CreatedAt:   def.CreatedAt,
	}
	for i := range def.Escalations {
		resp.Escalations = append(resp.Escalations, escalationResponse(&def.Escalations[i]))
	}
	return resp
}
