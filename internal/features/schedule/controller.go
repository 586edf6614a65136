package schedule

import (
	"surveysync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct {
	Service ScheduleService
}

func NewScheduleController(service ScheduleService) *ScheduleController {
	return &ScheduleController{
		Service: service,
	}
}

// CreateSchedule godoc
func (ctrl *ScheduleController) CreateSchedule(c *fiber.Ctx) error {
	var sched ScheduledSync
	if err := c.BodyParser(&sched); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if claims, ok := c.Locals(utils.SessionClaimsKey).(*utils.SessionClaims); ok && sched.SessionID == "" {
		sched.SessionID = claims.SessionID
	}

	if err := ctrl.Service.Create(c.Context(), &sched); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Scheduled sync created successfully",
		"data":    sched,
	})
}

// ListSchedules godoc
func (ctrl *ScheduleController) ListSchedules(c *fiber.Ctx) error {
	scheds, err := ctrl.Service.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": scheds})
}

// GetSchedule godoc
func (ctrl *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	sched, err := ctrl.Service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(sched)
}

// UpdateSchedule godoc
func (ctrl *ScheduleController) UpdateSchedule(c *fiber.Ctx) error {
	var updates map[string]interface{}
	if err := c.BodyParser(&updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := ctrl.Service.Update(c.Context(), c.Params("id"), updates); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Scheduled sync updated successfully"})
}

// DeleteSchedule godoc
func (ctrl *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	if err := ctrl.Service.Delete(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Scheduled sync deleted successfully"})
}

// RunSchedule godoc
func (ctrl *ScheduleController) RunSchedule(c *fiber.Ctx) error {
	progress, err := ctrl.Service.RunNow(c.Context(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(progress)
}
