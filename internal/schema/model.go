// Package schema holds the document-schema model: the named, versioned
// definition of the fields the pipeline extracts for one document type.
package schema

// Field describes one expected metadata field.
type Field struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Example     string   `json:"example,omitempty"`
	EnumValues  []string `json:"enum,omitempty"`
}

// DocumentSchema is the full field definition for one document type.
// Read-only from the pipeline's perspective: a schema must not change
// mid-run so the extracted field set stays consistent.
type DocumentSchema struct {
	Name        string  `json:"-"`
	Description string  `json:"description,omitempty"`
	Version     string  `json:"version,omitempty"`
	Fields      []Field `json:"fields"`
}

// FieldNames returns the schema's field names in declaration order.
func (s DocumentSchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}
