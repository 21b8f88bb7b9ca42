package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-timekeeper/internal/api/dto"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/service"
	apperrors "github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// WorkEntriesHandler handles draft confirmation and work entry management.
type WorkEntriesHandler struct {
	service *service.WorklogService
}

// NewWorkEntriesHandler constructs handler.
func NewWorkEntriesHandler(worklog *service.WorklogService) *WorkEntriesHandler {
	return &WorkEntriesHandler{service: worklog}
}

// Confirm POST /tickets/:ticketId/work-entries.
func (h *WorkEntriesHandler) Confirm(c *fiber.Ctx) error {
	actor, draft, err := h.parseDraft(c)
	if err != nil {
		return err
	}
	entry, err := h.service.Confirm(c.UserContext(), actor, draft)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": workEntryResponse(entry)})
}

// Discard POST /tickets/:ticketId/work-entries/discard.
func (h *WorkEntriesHandler) Discard(c *fiber.Ctx) error {
	actor, draft, err := h.parseDraft(c)
	if err != nil {
		return err
	}
	h.service.Discard(c.UserContext(), actor, draft)
	return c.SendStatus(fiber.StatusNoContent)
}

// ListForTicket GET /tickets/:ticketId/work-entries.
func (h *WorkEntriesHandler) ListForTicket(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	filter.TicketID = &ticketID
	return h.list(c, filter)
}

// TicketSummary GET /tickets/:ticketId/time-summary.
func (h *WorkEntriesHandler) TicketSummary(c *fiber.Ctx) error {
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	filter.TicketID = &ticketID
	return h.summary(c, filter)
}

// List GET /work-entries.
func (h *WorkEntriesHandler) List(c *fiber.Ctx) error {
	filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	return h.list(c, filter)
}

// Summary GET /work-entries/summary.
func (h *WorkEntriesHandler) Summary(c *fiber.Ctx) error {
	filter, err := h.parseFilter(c)
	if err != nil {
		return err
	}
	return h.summary(c, filter)
}

// Get GET /work-entries/:id.
func (h *WorkEntriesHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entryID, err := pathID(c, "id", "work entry")
	if err != nil {
		return err
	}
	entry, err := h.service.Get(c.UserContext(), actor, entryID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workEntryResponse(entry)})
}

// Update PATCH /work-entries/:id.
func (h *WorkEntriesHandler) Update(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entryID, err := pathID(c, "id", "work entry")
	if err != nil {
		return err
	}
	var req dto.UpdateWorkEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.service.Update(c.UserContext(), actor, entryID, service.WorkEntryUpdate{
		Description: req.Description,
		IsBillable:  req.IsBillable,
		HourlyRate:  req.HourlyRate,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workEntryResponse(entry)})
}

// Delete DELETE /work-entries/:id.
func (h *WorkEntriesHandler) Delete(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entryID, err := pathID(c, "id", "work entry")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, entryID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *WorkEntriesHandler) list(c *fiber.Ctx, filter service.WorkEntryListFilter) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	entries, err := h.service.List(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.WorkEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, workEntryResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func (h *WorkEntriesHandler) summary(c *fiber.Ctx, filter service.WorkEntryListFilter) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	filter.Limit, filter.Offset = 0, 0
	summary, err := h.service.Summary(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": workSummaryResponse(summary)})
}

func (h *WorkEntriesHandler) parseDraft(c *fiber.Ctx) (domain.Actor, domain.WorkEntryDraft, error) {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return domain.Actor{}, domain.WorkEntryDraft{}, err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return domain.Actor{}, domain.WorkEntryDraft{}, err
	}
	var req dto.ConfirmWorkEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Actor{}, domain.WorkEntryDraft{}, apperrors.NewValidationError("invalid payload", nil)
	}
	billable := true
	if req.IsBillable != nil {
		billable = *req.IsBillable
	}
	return actor, domain.WorkEntryDraft{
		TenantID:        actor.TenantID,
		TicketID:        ticketID,
		UserID:          actor.UserID,
		Description:     req.Description,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		PausedMinutes:   req.PausedMinutes,
		IsBillable:      billable,
		HourlyRate:      req.HourlyRate,
	}, nil
}

func (h *WorkEntriesHandler) parseFilter(c *fiber.Ctx) (service.WorkEntryListFilter, error) {
	var filter service.WorkEntryListFilter
	if ticketID := c.Query("ticket_id"); ticketID != "" {
		if err := optionalID(&ticketID, "ticket_id", "ticket"); err != nil {
			return filter, err
		}
		filter.TicketID = &ticketID
	}
	if userID := c.Query("user_id"); userID != "" {
		filter.UserID = &userID
	}
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return filter, apperrors.NewValidationError("invalid from", nil)
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return filter, apperrors.NewValidationError("invalid to", nil)
	}
	filter.From, filter.To = from, to
	filter.Limit, filter.Offset = pagination(c)
	return filter, nil
}
