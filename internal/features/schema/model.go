package schema

// FieldType enumerates the SurveyCTO field types we understand
type FieldType string

const (
	FieldTypeText           FieldType = "text"
	FieldTypeInteger        FieldType = "integer"
	FieldTypeDecimal        FieldType = "decimal"
	FieldTypeDate           FieldType = "date"
	FieldTypeDatetime       FieldType = "datetime"
	FieldTypeSelectOne      FieldType = "select_one"
	FieldTypeSelectMultiple FieldType = "select_multiple"
	FieldTypeGeopoint       FieldType = "geopoint"
	FieldTypeCalculate      FieldType = "calculate"
)

// FieldDefinition describes a source-side form field
type FieldDefinition struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"type"`
	Label        string    `json:"label"`
	IsPrimaryKey bool      `json:"isPrimaryKey"`
}

// ColumnDefinition describes a target-side table column
type ColumnDefinition struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Nullable     bool   `json:"nullable"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
}

// TableDefinition is a snapshot of a target table's catalog entry
type TableDefinition struct {
	Name       string             `json:"name"`
	Columns    []ColumnDefinition `json:"columns"`
	PrimaryKey string             `json:"primaryKey,omitempty"`
	RowCount   int64              `json:"rowCount"`
}

// SchemaDefinition groups the tables of one target schema
type SchemaDefinition struct {
	Name   string            `json:"name"`
	Tables []TableDefinition `json:"tables"`
}

// TypeMismatch reports a column whose target type differs from what the
// mapper would produce for the source field
type TypeMismatch struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// CompatibilityReport is the result of validating source fields against a
// target table. Computed fresh on every call, never persisted.
type CompatibilityReport struct {
	Compatible      bool           `json:"compatible"`
	MissingColumns  []string       `json:"missingColumns"`
	ExtraColumns    []string       `json:"extraColumns"`
	TypeMismatches  []TypeMismatch `json:"typeMismatches"`
	PrimaryKeyMatch bool           `json:"primaryKeyMatch"`
}
