package schema

import "testing"

func TestMapFieldType(t *testing.T) {
	tests := []struct {
		name      string
		fieldType FieldType
		want      string
	}{
		{"Text", FieldTypeText, "TEXT"},
		{"Integer", FieldTypeInteger, "INTEGER"},
		{"Decimal", FieldTypeDecimal, "NUMERIC"},
		{"Date", FieldTypeDate, "DATE"},
		{"Datetime", FieldTypeDatetime, "TIMESTAMPTZ"},
		{"Select One", FieldTypeSelectOne, "TEXT"},
		{"Select Multiple", FieldTypeSelectMultiple, "TEXT[]"},
		{"Geopoint", FieldTypeGeopoint, "GEOGRAPHY(POINT,4326)"},
		{"Calculate", FieldTypeCalculate, "TEXT"},
		{"Unknown Falls Back To Text", FieldType("barcode"), "TEXT"},
		{"Empty Falls Back To Text", FieldType(""), "TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapFieldType(tt.fieldType); got != tt.want {
				t.Errorf("MapFieldType(%q) = %q, want %q", tt.fieldType, got, tt.want)
			}
		})
	}
}
