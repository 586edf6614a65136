package surveycto

import (
	"errors"

	"surveysync/internal/features/session"
	"surveysync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type SurveyCTOController struct {
	Service        SurveyCTOService
	SessionService session.SessionService
}

func NewSurveyCTOController(service SurveyCTOService, sessionService session.SessionService) *SurveyCTOController {
	return &SurveyCTOController{
		Service:        service,
		SessionService: sessionService,
	}
}

// ListForms godoc
func (ctrl *SurveyCTOController) ListForms(c *fiber.Ctx) error {
	claims, ok := c.Locals(utils.SessionClaimsKey).(*utils.SessionClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Session token required",
		})
	}

	info, err := ctrl.SessionService.Resolve(claims.SessionID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	forms, err := ctrl.Service.ListForms(c.Context(), info.Credentials)
	if err != nil {
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	// Servers that omit a version still get one in the response
	out := make([]Form, 0, len(forms))
	for _, f := range forms {
		if f.Version == "" {
			f.Version = "1"
		}
		out = append(out, f)
	}
	return c.JSON(out)
}

// FormFields godoc
func (ctrl *SurveyCTOController) FormFields(c *fiber.Ctx) error {
	claims, ok := c.Locals(utils.SessionClaimsKey).(*utils.SessionClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Session token required",
		})
	}

	info, err := ctrl.SessionService.Resolve(claims.SessionID)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	fields, err := ctrl.Service.FormFields(c.Context(), info.Credentials, c.Params("id"))
	if err != nil {
		var cooldown *CooldownError
		if errors.As(err, &cooldown) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       cooldown.Error(),
				"retry_after": cooldown.Seconds,
			})
		}
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fields)
}

func statusForError(err error) int {
	var apiErr *ApiError
	switch {
	case errors.Is(err, ErrAuthentication):
		return fiber.StatusUnauthorized
	case errors.As(err, &apiErr):
		return fiber.StatusForbidden
	case errors.Is(err, ErrServerConnection):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusBadGateway
	}
}
