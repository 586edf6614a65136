package schedule

import (
	"surveysync/internal/common/api"
	"surveysync/internal/config"
	"surveysync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ScheduleApi struct {
	controller *ScheduleController
	config     *config.Config
}

func NewScheduleApi(controller *ScheduleController, config *config.Config) api.Route {
	return &ScheduleApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all schedule routes
func (h *ScheduleApi) Setup(app *fiber.App) {
	group := app.Group("/api/schedules", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("", h.controller.CreateSchedule)
	group.Get("", h.controller.ListSchedules)
	group.Get("/:id", h.controller.GetSchedule)
	group.Put("/:id", h.controller.UpdateSchedule)
	group.Delete("/:id", h.controller.DeleteSchedule)
	group.Post("/:id/run", h.controller.RunSchedule)
}
