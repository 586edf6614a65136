package postgres

import (
	"surveysync/internal/common/api"
	"surveysync/internal/config"
	"surveysync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type PostgresApi struct {
	controller *PostgresController
	config     *config.Config
}

func NewPostgresApi(controller *PostgresController, config *config.Config) api.Route {
	return &PostgresApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all target-store routes
func (h *PostgresApi) Setup(app *fiber.App) {
	group := app.Group("/api/pg", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/connect", h.controller.Connect)
	group.Get("/schemas", h.controller.ListSchemas)
	group.Get("/schemas/:schema/tables", h.controller.ListTables)
	group.Post("/validate-schema", h.controller.ValidateSchema)
	group.Post("/tables", h.controller.CreateTable)
}
