package pipeline

import (
	"github.com/Yureehh/Extractly/internal/llm"
	"github.com/Yureehh/Extractly/internal/schema"
)

// Document is one uploaded file, already resolved to page images and/or raw
// text by the ingestion layer.
type Document struct {
	Filename string
	Pages    []llm.Image
	Text     string // raw content for text files, or pre-computed OCR text
	// DocTypeOverride routes the document to a known type without
	// classification (manual routing).
	DocTypeOverride string
}

// Options carries the per-invocation knobs. Always passed explicitly; the
// runner keeps no ambient state between invocations.
type Options struct {
	EnableOCR         bool
	ComputeConfidence bool
	ClassifierPrompt  string
	ExtractionPrompt  string
}

// ProgressFunc receives advisory progress after each discrete step: a
// human-readable label and a fraction in [0,1]. It must not affect
// correctness or ordering.
type ProgressFunc func(message string, fraction float64)

// RunRequest is one pipeline invocation over a batch of documents.
type RunRequest struct {
	Documents []Document
	// Schemas holds every registered schema keyed by name; read-only for the
	// duration of the run.
	Schemas map[string]schema.DocumentSchema
	// DefaultSchema, when set, backs documents routed by override to a type
	// with no registered schema.
	DefaultSchema *schema.DocumentSchema
	// SchemaName labels the run; empty = default-schema name or "Classified".
	SchemaName string
	Options    Options
	Progress   ProgressFunc
}
