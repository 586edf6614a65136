package postgres

import (
	"errors"

	"surveysync/internal/features/schema"
)

// Credentials for the target Postgres server, supplied by the caller and
// scoped to one session
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"sslMode"`
}

var (
	// ErrNotConnected means the session never ran a successful connect
	ErrNotConnected = errors.New("not connected to database")
	// ErrNameConflict means table creation hit an existing table of that name
	ErrNameConflict = errors.New("table already exists")
)

type ConnectionResponse struct {
	Success bool                      `json:"success"`
	Schemas []schema.SchemaDefinition `json:"schemas,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

type ValidateSchemaRequest struct {
	FormFields   []schema.FieldDefinition `json:"formFields"`
	TargetSchema string                   `json:"targetSchema"`
	TargetTable  string                   `json:"targetTable"`
}

type CreateTableRequest struct {
	SchemaName string                    `json:"schemaName"`
	TableName  string                    `json:"tableName"`
	Columns    []schema.ColumnDefinition `json:"columns"`
}

type CreateTableResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
