package extract

import (
	"encoding/json"
	"fmt"
)

// Canonical renders a field value as a canonical string for vote comparison:
// nil becomes "", structural values serialize to sorted-key JSON so
// semantically identical structures count as the same vote, and scalars use
// their natural string form.
func Canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		// encoding/json writes map keys in sorted order, which is exactly the
		// canonical form consensus comparison needs.
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
