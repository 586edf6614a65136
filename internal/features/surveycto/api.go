package surveycto

import (
	"surveysync/internal/common/api"
	"surveysync/internal/config"
	"surveysync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SurveyCTOApi struct {
	controller *SurveyCTOController
	config     *config.Config
}

func NewSurveyCTOApi(controller *SurveyCTOController, config *config.Config) api.Route {
	return &SurveyCTOApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all SurveyCTO routes
func (h *SurveyCTOApi) Setup(app *fiber.App) {
	group := app.Group("/surveycto", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/forms", h.controller.ListForms)
	group.Get("/forms/:id/fields", h.controller.FormFields)
}
