package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-timekeeper/internal/api/dto"
	"github.com/spec-kit/sla-timekeeper/internal/auth"
	"github.com/spec-kit/sla-timekeeper/internal/domain"
	"github.com/spec-kit/sla-timekeeper/internal/service"
)

// TimersHandler exposes the per-ticket timer state machine.
type TimersHandler struct {
	service *service.TimerService
}

// NewTimersHandler constructs handler.
func NewTimersHandler(timerService *service.TimerService) *TimersHandler {
	return &TimersHandler{service: timerService}
}

// List GET /timers.
func (h *TimersHandler) List(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	views, err := h.service.ListUserTimers(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.TimerResponse, 0, len(views))
	for i := range views {
		items = append(items, timerResponse("", &views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /tickets/:ticketId/timer.
func (h *TimersHandler) Get(c *fiber.Ctx) error {
	return h.transition(c, fiber.StatusOK, h.service.GetTimer)
}

// Start POST /tickets/:ticketId/timer/start.
func (h *TimersHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, fiber.StatusCreated, h.service.Start)
}

// Pause POST /tickets/:ticketId/timer/pause.
func (h *TimersHandler) Pause(c *fiber.Ctx) error {
	return h.transition(c, fiber.StatusOK, h.service.Pause)
}

// Resume POST /tickets/:ticketId/timer/resume.
func (h *TimersHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, fiber.StatusOK, h.service.Resume)
}

// Stop POST /tickets/:ticketId/timer/stop. The response carries an unsaved draft
// that must be confirmed through the work entries endpoint.
func (h *TimersHandler) Stop(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	outcome, err := h.service.Stop(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.StopTimerResponse{
		DurationMs:    outcome.Result.DurationMs,
		TotalPausedMs: outcome.Result.TotalPausedMs,
		StoppedAt:     outcome.Result.StoppedAt,
		Draft:         draftDTO(outcome.Draft),
	}})
}

type timerOperation func(ctx context.Context, actor domain.Actor, ticketID string) (*service.TimerView, error)

func (h *TimersHandler) transition(c *fiber.Ctx, status int, op timerOperation) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	ticketID, err := pathID(c, "ticketId", "ticket")
	if err != nil {
		return err
	}
	view, err := op(c.UserContext(), actor, ticketID)
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": timerResponse(ticketID, view)})
}
