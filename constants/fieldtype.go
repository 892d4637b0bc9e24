package constants

// FieldType is the canonical type of a schema field.
type FieldType string

// Stable values (store these exact strings in schema files).
const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
	FieldDate    FieldType = "date"
	FieldEnum    FieldType = "enum"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
)

// FieldTypes lists every allowed field type, in display order.
var FieldTypes = []FieldType{
	FieldString,
	FieldNumber,
	FieldInteger,
	FieldBoolean,
	FieldDate,
	FieldEnum,
	FieldObject,
	FieldArray,
}

var fieldTypeSet = func() map[FieldType]struct{} {
	m := make(map[FieldType]struct{}, len(FieldTypes))
	for _, ft := range FieldTypes {
		m[ft] = struct{}{}
	}
	return m
}()

// IsValidFieldType reports whether s is one of the allowed field types.
func IsValidFieldType(s string) bool {
	_, ok := fieldTypeSet[FieldType(s)]
	return ok
}
