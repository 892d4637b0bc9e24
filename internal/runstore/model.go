// Package runstore persists pipeline runs: one directory per run holding a
// single run.json that is the complete, human-inspectable record of the run.
package runstore

// RunDocument is one uploaded file's pipeline result.
//
// Extracted is the untouched machine output and is never mutated after
// creation; Corrected starts as a copy of it and is the only projection a
// reviewer may edit. Keeping the two apart is what lets the feedback layer
// diff human corrections against the model's original guess.
type RunDocument struct {
	Filename              string             `json:"filename"`
	DocumentType          string             `json:"document_type"`
	DocumentTypeOriginal  string             `json:"document_type_original"`
	DocumentTypeCorrected string             `json:"document_type_corrected"`
	Confidence            *float64           `json:"confidence"`
	Extracted             map[string]any     `json:"extracted"`
	Corrected             map[string]any     `json:"corrected"`
	FieldConfidence       map[string]float64 `json:"field_confidence"`
	PreviewImage          string             `json:"preview_image,omitempty"`
	Warnings              []string           `json:"warnings"`
	Errors                []string           `json:"errors"`
}

// ExtractionRun is the durable artifact of one pipeline invocation.
type ExtractionRun struct {
	RunID      string        `json:"run_id"`
	StartedAt  string        `json:"started_at"`
	SchemaName string        `json:"schema_name"`
	Mode       string        `json:"mode"`
	Status     string        `json:"status"`
	Logs       []string      `json:"logs"`
	Documents  []RunDocument `json:"documents"`
}

// RunSummary is the listing projection of a persisted run.
type RunSummary struct {
	RunID         string `json:"run_id"`
	StartedAt     string `json:"started_at"`
	SchemaName    string `json:"schema_name"`
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
}
