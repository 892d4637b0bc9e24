// Package feedback captures reviewer corrections: which fields a human
// changed relative to the model's original output, persisted durably and
// exportable as newline-delimited JSON.
package feedback

import (
	"sort"

	"github.com/Yureehh/Extractly/internal/extract"
)

// ChangedFields returns the names of fields whose corrected value differs
// from the extracted one. A key added or removed by the reviewer counts as
// changed. Values are compared in canonical string form, the same form the
// consensus mechanism votes on. The result is sorted.
func ChangedFields(extracted, corrected map[string]any) []string {
	keys := make(map[string]struct{}, len(extracted)+len(corrected))
	for k := range extracted {
		keys[k] = struct{}{}
	}
	for k := range corrected {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		before, beforeOK := extracted[k]
		after, afterOK := corrected[k]
		if beforeOK != afterOK || extract.Canonical(before) != extract.Canonical(after) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
