package syncjob

import (
	"errors"

	"surveysync/internal/features/session"
	"surveysync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type SyncJobController struct {
	Service SyncJobService
}

func NewSyncJobController(service SyncJobService) *SyncJobController {
	return &SyncJobController{
		Service: service,
	}
}

// CreateJob godoc
func (ctrl *SyncJobController) CreateJob(c *fiber.Ctx) error {
	claims, ok := c.Locals(utils.SessionClaimsKey).(*utils.SessionClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	var cfg SyncConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	progress, err := ctrl.Service.Start(c.Context(), claims.SessionID, cfg)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, session.ErrInvalidSession) {
			status = fiber.StatusUnauthorized
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(progress)
}

// ListJobs godoc
func (ctrl *SyncJobController) ListJobs(c *fiber.Ctx) error {
	records, err := ctrl.Service.ListJobs(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"data": records})
}

// ListProgress godoc
func (ctrl *SyncJobController) ListProgress(c *fiber.Ctx) error {
	return c.JSON(ctrl.Service.ListProgress())
}

// GetProgress godoc
func (ctrl *SyncJobController) GetProgress(c *fiber.Ctx) error {
	progress, ok := ctrl.Service.GetProgress(c.Params("id"))
	if !ok {
		// Cleared or never existed; callers treat this as "no such job"
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(progress)
}

// CancelJob godoc
func (ctrl *SyncJobController) CancelJob(c *fiber.Ctx) error {
	if err := ctrl.Service.Cancel(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Sync job cancelled"})
}

// ClearCompleted godoc
func (ctrl *SyncJobController) ClearCompleted(c *fiber.Ctx) error {
	cleared, err := ctrl.Service.ClearTerminalJobs(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"cleared": cleared})
}

// DeleteJob godoc
func (ctrl *SyncJobController) DeleteJob(c *fiber.Ctx) error {
	if err := ctrl.Service.DeleteJob(c.Context(), c.Params("id")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "Sync job deleted"})
}
