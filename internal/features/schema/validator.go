package schema

import (
	"strings"

	"go.uber.org/zap"
)

// metadataColumns are store-managed columns that never originate from the
// source and are excluded from the extra-column report.
var metadataColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"id":         true,
}

type ValidatorService interface {
	Validate(fields []FieldDefinition, table *TableDefinition) CompatibilityReport
}

type ValidatorServiceImpl struct {
	Logger *zap.Logger
}

func NewValidatorService(logger *zap.Logger) ValidatorService {
	return &ValidatorServiceImpl{Logger: logger}
}

// Validate reconciles the source field list against a target table snapshot.
// A nil table means the table does not exist yet; a not-yet-created table
// imposes no constraint, so the result is fully compatible.
func (s *ValidatorServiceImpl) Validate(fields []FieldDefinition, table *TableDefinition) CompatibilityReport {
	if table == nil {
		return CompatibilityReport{
			Compatible:      true,
			MissingColumns:  []string{},
			ExtraColumns:    []string{},
			TypeMismatches:  []TypeMismatch{},
			PrimaryKeyMatch: true,
		}
	}

	columnsByName := make(map[string]ColumnDefinition, len(table.Columns))
	for _, col := range table.Columns {
		columnsByName[strings.ToLower(col.Name)] = col
	}

	sourcePK := strings.ToLower(PrimaryKeyField(fields, s.Logger))
	pkMatch := primaryKeyMatch(sourcePK, table)

	fieldNames := make(map[string]bool, len(fields))
	missing := []string{}
	mismatches := []TypeMismatch{}
	for _, f := range fields {
		lower := strings.ToLower(f.Name)
		fieldNames[lower] = true

		col, ok := columnsByName[lower]
		if !ok {
			// A source key satisfied by the target's surrogate id key is not
			// a missing column; the key lives in the surrogate
			if pkMatch && lower == sourcePK && sourcePK != "" {
				continue
			}
			missing = append(missing, f.Name)
			continue
		}

		expected := MapFieldType(f.Type)
		if !strings.EqualFold(col.Type, expected) {
			mismatches = append(mismatches, TypeMismatch{
				Field:    f.Name,
				Expected: expected,
				Actual:   col.Type,
			})
		}
	}

	extra := []string{}
	for _, col := range table.Columns {
		lower := strings.ToLower(col.Name)
		if metadataColumns[lower] {
			continue
		}
		if !fieldNames[lower] {
			extra = append(extra, col.Name)
		}
	}

	return CompatibilityReport{
		Compatible:      len(missing) == 0 && pkMatch,
		MissingColumns:  missing,
		ExtraColumns:    extra,
		TypeMismatches:  mismatches,
		PrimaryKeyMatch: pkMatch,
	}
}

// primaryKeyMatch is true when the source's designated primary-key field
// matches the target's primary key case-insensitively, or when the target
// key is named exactly "id" (an auto-assigned surrogate key that satisfies
// any source key). A source with no primary-key field cannot satisfy a key
// requirement and yields false rather than an error.
func primaryKeyMatch(sourcePK string, table *TableDefinition) bool {
	targetPK := table.PrimaryKey
	if targetPK == "" {
		for _, col := range table.Columns {
			if col.IsPrimaryKey {
				targetPK = col.Name
				break
			}
		}
	}

	if strings.EqualFold(targetPK, "id") {
		return true
	}
	if sourcePK == "" || targetPK == "" {
		return false
	}
	return strings.EqualFold(sourcePK, targetPK)
}

// PrimaryKeyField returns the name of the source primary-key field. Forms
// with more than one key-marked field are anomalous; the first one is
// canonical and the rest are flagged in the log.
func PrimaryKeyField(fields []FieldDefinition, logger *zap.Logger) string {
	var pk string
	for _, f := range fields {
		if !f.IsPrimaryKey {
			continue
		}
		if pk == "" {
			pk = f.Name
			continue
		}
		if logger != nil {
			logger.Warn("form declares multiple primary-key fields, using the first",
				zap.String("canonical", pk),
				zap.String("ignored", f.Name))
		}
	}
	return pk
}
