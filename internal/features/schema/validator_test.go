package schema

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func newTestValidator() ValidatorService {
	return NewValidatorService(zap.NewNop())
}

func TestValidateMissingTable(t *testing.T) {
	validator := newTestValidator()

	report := validator.Validate([]FieldDefinition{
		{Name: "key", Type: FieldTypeText, IsPrimaryKey: true},
	}, nil)

	if !report.Compatible {
		t.Error("expected a missing table to be fully compatible")
	}
	if !report.PrimaryKeyMatch {
		t.Error("expected primaryKeyMatch for a missing table")
	}
	if len(report.MissingColumns) != 0 || len(report.ExtraColumns) != 0 || len(report.TypeMismatches) != 0 {
		t.Errorf("expected empty findings, got %+v", report)
	}
}

func TestValidate(t *testing.T) {
	validator := newTestValidator()

	tests := []struct {
		name        string
		fields      []FieldDefinition
		table       *TableDefinition
		wantMissing []string
		wantExtra   []string
		wantPKMatch bool
		wantCompat  bool
	}{
		{
			// Case differences and store-managed columns never count against
			// compatibility
			name: "Case Insensitive With Metadata Columns",
			fields: []FieldDefinition{
				{Name: "KEY", Type: FieldTypeText, IsPrimaryKey: true},
				{Name: "age", Type: FieldTypeInteger},
			},
			table: &TableDefinition{
				Name:       "households",
				PrimaryKey: "key",
				Columns: []ColumnDefinition{
					{Name: "key", Type: "TEXT", IsPrimaryKey: true},
					{Name: "age", Type: "INTEGER"},
					{Name: "created_at", Type: "TIMESTAMPTZ"},
				},
			},
			wantMissing: []string{},
			wantExtra:   []string{},
			wantPKMatch: true,
			wantCompat:  true,
		},
		{
			// Surrogate id key satisfies any source key, but a missing column
			// still blocks the sync
			name: "Missing Column With Surrogate Key",
			fields: []FieldDefinition{
				{Name: "KEY", Type: FieldTypeText, IsPrimaryKey: true},
				{Name: "income", Type: FieldTypeDecimal},
			},
			table: &TableDefinition{
				Name:       "households",
				PrimaryKey: "id",
				Columns: []ColumnDefinition{
					{Name: "id", Type: "INTEGER", IsPrimaryKey: true},
					{Name: "age", Type: "INTEGER"},
				},
			},
			wantMissing: []string{"income"},
			wantExtra:   []string{"age"},
			wantPKMatch: true,
			wantCompat:  false,
		},
		{
			name: "Primary Key Mismatch",
			fields: []FieldDefinition{
				{Name: "key", Type: FieldTypeText, IsPrimaryKey: true},
			},
			table: &TableDefinition{
				Name:       "households",
				PrimaryKey: "household_code",
				Columns: []ColumnDefinition{
					{Name: "key", Type: "TEXT"},
					{Name: "household_code", Type: "TEXT", IsPrimaryKey: true},
				},
			},
			wantMissing: []string{},
			wantExtra:   []string{"household_code"},
			wantPKMatch: false,
			wantCompat:  false,
		},
		{
			name: "No Source Key Against Real Target Key",
			fields: []FieldDefinition{
				{Name: "age", Type: FieldTypeInteger},
			},
			table: &TableDefinition{
				Name:       "households",
				PrimaryKey: "age",
				Columns: []ColumnDefinition{
					{Name: "age", Type: "INTEGER", IsPrimaryKey: true},
				},
			},
			wantMissing: []string{},
			wantExtra:   []string{},
			wantPKMatch: false,
			wantCompat:  false,
		},
		{
			// Primary key falls back to the column flags when the table
			// snapshot carries no explicit key name
			name: "Key Derived From Column Flags",
			fields: []FieldDefinition{
				{Name: "key", Type: FieldTypeText, IsPrimaryKey: true},
			},
			table: &TableDefinition{
				Name: "households",
				Columns: []ColumnDefinition{
					{Name: "key", Type: "TEXT", IsPrimaryKey: true},
				},
			},
			wantMissing: []string{},
			wantExtra:   []string{},
			wantPKMatch: true,
			wantCompat:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validator.Validate(tt.fields, tt.table)

			if !reflect.DeepEqual(report.MissingColumns, tt.wantMissing) {
				t.Errorf("MissingColumns = %v, want %v", report.MissingColumns, tt.wantMissing)
			}
			if !reflect.DeepEqual(report.ExtraColumns, tt.wantExtra) {
				t.Errorf("ExtraColumns = %v, want %v", report.ExtraColumns, tt.wantExtra)
			}
			if report.PrimaryKeyMatch != tt.wantPKMatch {
				t.Errorf("PrimaryKeyMatch = %v, want %v", report.PrimaryKeyMatch, tt.wantPKMatch)
			}
			if report.Compatible != tt.wantCompat {
				t.Errorf("Compatible = %v, want %v", report.Compatible, tt.wantCompat)
			}
		})
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	validator := newTestValidator()

	report := validator.Validate([]FieldDefinition{
		{Name: "key", Type: FieldTypeText, IsPrimaryKey: true},
		{Name: "visits", Type: FieldTypeInteger},
	}, &TableDefinition{
		Name:       "clinics",
		PrimaryKey: "key",
		Columns: []ColumnDefinition{
			{Name: "key", Type: "TEXT", IsPrimaryKey: true},
			{Name: "visits", Type: "TEXT"},
		},
	})

	// Mismatches are advisory; they never veto compatibility on their own
	if !report.Compatible {
		t.Error("type mismatches alone should not make the schemas incompatible")
	}
	want := []TypeMismatch{{Field: "visits", Expected: "INTEGER", Actual: "TEXT"}}
	if !reflect.DeepEqual(report.TypeMismatches, want) {
		t.Errorf("TypeMismatches = %v, want %v", report.TypeMismatches, want)
	}
}

func TestPrimaryKeyField(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldDefinition
		want   string
	}{
		{"No Key", []FieldDefinition{{Name: "age"}}, ""},
		{"Single Key", []FieldDefinition{{Name: "key", IsPrimaryKey: true}}, "key"},
		{
			"Multiple Keys Use First",
			[]FieldDefinition{
				{Name: "age"},
				{Name: "key", IsPrimaryKey: true},
				{Name: "uuid", IsPrimaryKey: true},
			},
			"key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryKeyField(tt.fields, zap.NewNop()); got != tt.want {
				t.Errorf("PrimaryKeyField() = %q, want %q", got, tt.want)
			}
		})
	}
}
