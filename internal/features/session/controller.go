package session

import (
	"github.com/gofiber/fiber/v2"
)

type SessionController struct {
	Service SessionService
}

func NewSessionController(service SessionService) *SessionController {
	return &SessionController{
		Service: service,
	}
}

// CreateSession godoc
func (ctrl *SessionController) CreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" || req.ServerURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username, password and server_url are required",
		})
	}

	token, info, err := ctrl.Service.Create(req.Username, req.Password, req.ServerURL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		SessionToken: token,
		ExpiresAt:    info.ExpiresAt,
	})
}
