package schema

// MapFieldType maps a SurveyCTO field type to the Postgres column type used
// when creating target tables. Total over all inputs: anything unrecognized
// becomes TEXT, since SurveyCTO wide-JSON values arrive as strings anyway.
// The validator and the table-creation path both go through this function so
// they can never disagree about a field's target type.
func MapFieldType(fieldType FieldType) string {
	switch fieldType {
	case FieldTypeText:
		return "TEXT"
	case FieldTypeInteger:
		return "INTEGER"
	case FieldTypeDecimal:
		return "NUMERIC"
	case FieldTypeDate:
		return "DATE"
	case FieldTypeDatetime:
		return "TIMESTAMPTZ"
	case FieldTypeSelectOne:
		return "TEXT"
	case FieldTypeSelectMultiple:
		return "TEXT[]"
	case FieldTypeGeopoint:
		return "GEOGRAPHY(POINT,4326)"
	case FieldTypeCalculate:
		return "TEXT"
	default:
		return "TEXT"
	}
}
