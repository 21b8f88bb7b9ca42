package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-timekeeper/internal/api/dto"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/service"
	apperrors "github.com/spec-kit/sla-timekeeper/pkg/util/errorutil"
)

// SlaDefinitionsHandler administers SLA definitions and their escalation ladders.
type SlaDefinitionsHandler struct {
	service *service.SlaDefinitionService
}

// NewSlaDefinitionsHandler constructs handler.
func NewSlaDefinitionsHandler(definitions *service.SlaDefinitionService) *SlaDefinitionsHandler {
	return &SlaDefinitionsHandler{service: definitions}
}

// Create POST /sla-definitions.
func (h *SlaDefinitionsHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateSlaDefinitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	def, err := h.service.Create(c.UserContext(), actor, service.SlaDefinitionInput{
		Name:        req.Name,
		Description: req.Description,
		Response:    budgetsFromDTO(req.Response),
		Resolution:  budgetsFromDTO(req.Resolution),
		IsDefault:   req.IsDefault,
		IsActive:    active,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": slaDefinitionResponse(def)})
}

// List GET /sla-definitions.
func (h *SlaDefinitionsHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	defs, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.SlaDefinitionResponse, 0, len(defs))
	for i := range defs {
		items = append(items, slaDefinitionResponse(&defs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /sla-definitions/:id.
func (h *SlaDefinitionsHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	definitionID, err := pathID(c, "id", "sla definition")
	if err != nil {
		return err
	}
	def, err := h.service.Get(c.UserContext(), actor, definitionID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaDefinitionResponse(def)})
}

// Update PATCH /sla-definitions/:id.
func (h *SlaDefinitionsHandler) Update(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	definitionID, err := pathID(c, "id", "sla definition")
	if err != nil {
		return err
	}
	var req dto.UpdateSlaDefinitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	patch := service.SlaDefinitionPatch{
		Name:        req.Name,
		Description: req.Description,
		IsDefault:   req.IsDefault,
		IsActive:    req.IsActive,
	}
	if req.Response != nil {
		budgets := budgetsFromDTO(*req.Response)
		patch.Response = &budgets
	}
	if req.Resolution != nil {
		budgets := budgetsFromDTO(*req.Resolution)
		patch.Resolution = &budgets
	}
	def, err := h.service.Update(c.UserContext(), actor, definitionID, patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaDefinitionResponse(def)})
}

// Delete DELETE /sla-definitions/:id.
func (h *SlaDefinitionsHandler) Delete(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	definitionID, err := pathID(c, "id", "sla definition")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, definitionID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// AddEscalation POST /sla-definitions/:id/escalations.
func (h *SlaDefinitionsHandler) AddEscalation(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	definitionID, err := pathID(c, "id", "sla definition")
	if err != nil {
		return err
	}
	var req dto.CreateEscalationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	escalation, err := h.service.AddEscalation(c.UserContext(), actor, definitionID, service.EscalationInput{
		Level:            req.Level,
		ThresholdPercent: req.ThresholdPercent,
		EscalationType:   req.EscalationType,
		NotifyUserIDs:    req.NotifyUserIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": escalationResponse(escalation)})
}

// DeleteEscalation DELETE /sla-escalations/:id.
func (h *SlaDefinitionsHandler) DeleteEscalation(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	escalationID, err := pathID(c, "id", "sla escalation")
	if err != nil {
		return err
	}
	if err := h.service.DeleteEscalation(c.UserContext(), actor, escalationID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
