package syncjob

import (
	"surveysync/internal/common/api"
	"surveysync/internal/config"
	"surveysync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SyncJobApi struct {
	controller   *SyncJobController
	wsController *WebSocketController
	config       *config.Config
}

func NewSyncJobApi(controller *SyncJobController, wsController *WebSocketController, config *config.Config) api.Route {
	return &SyncJobApi{
		controller:   controller,
		wsController: wsController,
		config:       config,
	}
}

// Setup registers all sync job routes
func (h *SyncJobApi) Setup(app *fiber.App) {
	group := app.Group("/api/sync-jobs", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("", h.controller.CreateJob)
	group.Get("", h.controller.ListJobs)
	group.Get("/progress", h.controller.ListProgress)
	group.Get("/:id/progress", h.controller.GetProgress)
	group.Post("/:id/cancel", h.controller.CancelJob)
	group.Delete("/completed", h.controller.ClearCompleted)
	group.Delete("/:id", h.controller.DeleteJob)

	app.Get("/api/ws/sync-jobs/:id", websocket.New(h.wsController.StreamProgress))
}
