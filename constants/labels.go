package constants

// Sentinel classification labels. A document classified as either of these
// never reaches extraction: there is no schema to extract against.
const (
	LabelUnknown = "Unknown"
	LabelOther   = "Other"
)

// IsSentinelLabel reports whether label is one of the non-extractable
// classification outcomes.
func IsSentinelLabel(label string) bool {
	return label == LabelUnknown || label == LabelOther
}
