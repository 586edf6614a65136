package session

import (
	"surveysync/internal/common/api"

	"github.com/gofiber/fiber/v2"
)

type SessionApi struct {
	controller *SessionController
}

func NewSessionApi(controller *SessionController) api.Route {
	return &SessionApi{
		controller: controller,
	}
}

// Setup registers all session routes
func (h *SessionApi) Setup(app *fiber.App) {
	app.Post("/sessions", h.controller.CreateSession)
}
