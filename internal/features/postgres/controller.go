package postgres

import (
	"errors"
	"strings"

	"surveysync/internal/features/schema"
	"surveysync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type PostgresController struct {
	Service   PostgresService
	Validator schema.ValidatorService
}

func NewPostgresController(service PostgresService, validator schema.ValidatorService) *PostgresController {
	return &PostgresController{
		Service:   service,
		Validator: validator,
	}
}

func (ctrl *PostgresController) sessionID(c *fiber.Ctx) (string, bool) {
	claims, ok := c.Locals(utils.SessionClaimsKey).(*utils.SessionClaims)
	if !ok {
		return "", false
	}
	return claims.SessionID, true
}

// Connect godoc
func (ctrl *PostgresController) Connect(c *fiber.Ctx) error {
	sessionID, ok := ctrl.sessionID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	var creds Credentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if msg := validateCredentials(creds); msg != "" {
		return c.JSON(ConnectionResponse{Success: false, Error: msg})
	}

	schemas, err := ctrl.Service.Connect(c.Context(), sessionID, creds)
	if err != nil {
		return c.JSON(ConnectionResponse{Success: false, Error: err.Error()})
	}

	return c.JSON(ConnectionResponse{Success: true, Schemas: schemas})
}

// ListSchemas godoc
func (ctrl *PostgresController) ListSchemas(c *fiber.Ctx) error {
	sessionID, ok := ctrl.sessionID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	schemas, err := ctrl.Service.ListSchemas(c.Context(), sessionID)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(schemas)
}

// ListTables godoc
func (ctrl *PostgresController) ListTables(c *fiber.Ctx) error {
	sessionID, ok := ctrl.sessionID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	tables, err := ctrl.Service.ListTables(c.Context(), sessionID, c.Params("schema"))
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	if tables == nil {
		// Unknown schema is not an error; the frontend handles an empty list
		tables = []schema.TableDefinition{}
	}
	return c.JSON(tables)
}

// ValidateSchema godoc
func (ctrl *PostgresController) ValidateSchema(c *fiber.Ctx) error {
	sessionID, ok := ctrl.sessionID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	var req ValidateSchemaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	table, err := ctrl.Service.DescribeTable(c.Context(), sessionID, req.TargetSchema, req.TargetTable)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(ctrl.Validator.Validate(req.FormFields, table))
}

// CreateTable godoc
func (ctrl *PostgresController) CreateTable(c *fiber.Ctx) error {
	sessionID, ok := ctrl.sessionID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Session token required"})
	}

	var req CreateTableRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if strings.TrimSpace(req.SchemaName) == "" {
		return c.JSON(CreateTableResponse{Success: false, Error: "schemaName is required"})
	}
	if strings.TrimSpace(req.TableName) == "" {
		return c.JSON(CreateTableResponse{Success: false, Error: "tableName is required"})
	}

	if err := ctrl.Service.CreateTable(c.Context(), sessionID, req); err != nil {
		if errors.Is(err, ErrNameConflict) {
			return c.Status(fiber.StatusConflict).JSON(CreateTableResponse{Success: false, Error: err.Error()})
		}
		return c.Status(statusFor(err)).JSON(CreateTableResponse{Success: false, Error: err.Error()})
	}

	return c.JSON(CreateTableResponse{Success: true})
}

func validateCredentials(creds Credentials) string {
	switch {
	case strings.TrimSpace(creds.Host) == "":
		return "Host is required"
	case strings.TrimSpace(creds.Database) == "":
		return "Database name is required"
	case strings.TrimSpace(creds.Username) == "":
		return "Username is required"
	case strings.TrimSpace(creds.Password) == "":
		return "Password is required"
	default:
		return ""
	}
}

func statusFor(err error) int {
	if errors.Is(err, ErrNotConnected) {
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}
