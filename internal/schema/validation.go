package schema

import (
	"fmt"
	"strings"

	"github.com/Yureehh/Extractly/constants"
)

// ValidationResult collects everything wrong (or suspicious) about a schema.
// A schema is usable by the pipeline iff Errors is empty; warnings never
// block a save.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid reports whether the schema can drive extraction.
func (r ValidationResult) IsValid() bool { return len(r.Errors) == 0 }

const minDescriptionLen = 10

// Validate checks a schema against the authoring rules. All rules are
// independent, so several may fire at once. Pure function of the schema:
// calling it twice yields identical results.
func Validate(s DocumentSchema) ValidationResult {
	var res ValidationResult

	if strings.TrimSpace(s.Name) == "" {
		res.Errors = append(res.Errors, "Schema name is required.")
	}
	if len(s.Fields) == 0 {
		res.Errors = append(res.Errors, "Schema must define at least one field.")
	}

	seen := make(map[string]struct{}, len(s.Fields))
	duplicated := make(map[string]struct{})
	for idx, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			// No name to report, so reference the 1-based position.
			res.Errors = append(res.Errors, fmt.Sprintf("Field #%d is missing a name.", idx+1))
			continue
		}
		if _, dup := seen[name]; dup {
			if _, already := duplicated[name]; !already {
				res.Errors = append(res.Errors, fmt.Sprintf("Field '%s' is duplicated.", name))
				duplicated[name] = struct{}{}
			}
		}
		seen[name] = struct{}{}

		if !constants.IsValidFieldType(f.Type) {
			res.Errors = append(res.Errors, fmt.Sprintf("Field '%s' has invalid type '%s'.", name, f.Type))
		}
		if f.Type == string(constants.FieldEnum) && len(f.EnumValues) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("Field '%s' is enum but has no values.", name))
		}
		if dup := duplicateEnumValues(f.EnumValues); len(dup) > 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("Field '%s' has duplicate enum values: %s.", name, strings.Join(dup, ", ")))
		}
		if desc := strings.TrimSpace(f.Description); desc != "" && len(desc) < minDescriptionLen {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Field '%s' has a very short description.", name))
		}
	}

	return res
}

func duplicateEnumValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var dup []string
	reported := make(map[string]struct{})
	for _, v := range values {
		if _, ok := seen[v]; ok {
			if _, r := reported[v]; !r {
				dup = append(dup, v)
				reported[v] = struct{}{}
			}
			continue
		}
		seen[v] = struct{}{}
	}
	return dup
}
