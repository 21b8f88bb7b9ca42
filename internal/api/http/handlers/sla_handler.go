package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-timekeeper/internal/api/dto"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/service"
	apperrors "github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// SlaHandler exposes the SLA clock hooks of a ticket.
type SlaHandler struct {
	service *service.SlaService
}

// NewSlaHandler constructs handler.
func NewSlaHandler(sla *service.SlaService) *SlaHandler {
	return &SlaHandler{service: sla}
}

// Attach POST /tickets/:ticketId/sla/attach.
func (h *SlaHandler) Attach(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	var req dto.AttachSlaRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := optionalID(req.SlaDefinitionID, "sla_definition_id", "sla definition"); err != nil {
		return err
	}
	ticket, err := h.service.AttachSla(c.UserContext(), actor, ticketID, req.SlaDefinitionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSlaResponse(ticket)})
}

// ChangePriority PUT /tickets/:ticketId/priority.
func (h *SlaHandler) ChangePriority(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	var req dto.ChangePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.ChangePriority(c.UserContext(), actor, ticketID, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSlaResponse(ticket)})
}

// FirstResponse POST /tickets/:ticketId/sla/first-response. Recording twice
// keeps the original timestamp; recorded reports whether this call wrote it.
func (h *SlaHandler) FirstResponse(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	var req dto.FirstResponseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, recorded, err := h.service.RecordFirstResponse(c.UserContext(), actor, ticketID, req.RespondedAt)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSlaResponse(ticket), "recorded": recorded})
}

// Resolve POST /tickets/:ticketId/sla/resolve.
func (h *SlaHandler) Resolve(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	ticket, resolved, err := h.service.MarkResolved(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSlaResponse(ticket), "resolved": resolved})
}

// Evaluate POST /tickets/:ticketId/sla/evaluate.
func (h *SlaHandler) Evaluate(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	ticket, breach, err := h.service.EvaluateBreach(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": ticketSlaResponse(ticket),
		"breach": fiber.Map{
			"response":   breach.ResponseBreached,
			"resolution": breach.ResolutionBreached,
		},
	})
}

// Status GET /tickets/:ticketId/sla.
func (h *SlaHandler) Status(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	status, err := h.service.GetSlaStatus(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaStatusResponse(status)})
}

// History GET /tickets/:ticketId/history.
func (h *SlaHandler) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	entries, err := h.service.ListHistory(c.UserContext(), actor, ticketID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}
