// Package pipeline orchestrates the per-document state machine:
// Parse -> Classified-or-Overridden -> Extracted-or-Skipped -> Persisted.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Yureehh/Extractly/constants"
	"github.com/Yureehh/Extractly/internal/classify"
	"github.com/Yureehh/Extractly/internal/extract"
	"github.com/Yureehh/Extractly/internal/ocr"
	"github.com/Yureehh/Extractly/internal/runstore"
	"github.com/Yureehh/Extractly/internal/schema"
)

// Config holds the runner's fixed knobs; per-invocation options travel in
// RunRequest instead.
type Config struct {
	ClassifyModel string
	ExtractModel  string
	Temperature   float32
	ClassVotes    int    // default 5
	ExtractVotes  int    // consensus passes when confidence is on, default 5
	Mode          string // run label, default "Accurate"
	// PreviewMaxBytes skips the embedded preview for lead pages larger than
	// this. Default 1 MiB.
	PreviewMaxBytes int
}

// Runner executes pipeline invocations. Documents are processed sequentially
// in upload order; a failure in one document never aborts its siblings.
type Runner struct {
	cfg        Config
	classifier *classify.Engine
	extractor  *extract.Engine
	ocrEngine  *ocr.Engine
	store      *runstore.Store
	log        *slog.Logger
}

func NewRunner(cfg Config, classifier *classify.Engine, extractor *extract.Engine, ocrEngine *ocr.Engine, store *runstore.Store, logger *slog.Logger) *Runner {
	if cfg.ClassVotes <= 0 {
		cfg.ClassVotes = 5
	}
	if cfg.ExtractVotes <= 0 {
		cfg.ExtractVotes = 5
	}
	if cfg.Mode == "" {
		cfg.Mode = "Accurate"
	}
	if cfg.PreviewMaxBytes <= 0 {
		cfg.PreviewMaxBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:        cfg,
		classifier: classifier,
		extractor:  extractor,
		ocrEngine:  ocrEngine,
		store:      store,
		log:        logger,
	}
}

// Run processes the batch and persists one ExtractionRun before returning it.
// Per-document classification/extraction failures are recorded into that
// document's Errors list; a persistence failure propagates, since a run that
// cannot be saved must not be silently dropped.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*runstore.ExtractionRun, error) {
	runID := r.store.CreateRunID()
	startedAt := time.Now().UTC().Format(time.RFC3339)

	candidates := candidateLabels(req.Schemas)
	var logs []string
	documents := make([]runstore.RunDocument, 0, len(req.Documents))

	totalDocs := len(req.Documents)
	totalSteps := totalDocs * 2
	if totalSteps < 1 {
		totalSteps = 1
	}
	currentStep := 0
	report := func(message string) {
		currentStep++
		if req.Progress != nil {
			fraction := float64(currentStep) / float64(totalSteps)
			if fraction > 1.0 {
				fraction = 1.0
			}
			req.Progress(message, fraction)
		}
	}

	for idx, doc := range req.Documents {
		logs = append(logs, fmt.Sprintf("Parsing %s", doc.Filename))

		ocrText := doc.Text
		if ocrText == "" && req.Options.EnableOCR && len(doc.Pages) > 0 {
			ocrText = r.ocrEngine.Run(ctx, doc.Pages)
		}

		var (
			docType    string
			confidence *float64
			warnings   []string
			errs       []string
		)

		if doc.DocTypeOverride != "" {
			docType = doc.DocTypeOverride
			logs = append(logs, fmt.Sprintf("Using provided document type for %s: %s", doc.Filename, docType))
			report(fmt.Sprintf("Assigning schema %d/%d • %s", idx+1, totalDocs, doc.Filename))
		} else {
			report(fmt.Sprintf("Classifying %d/%d • %s", idx+1, totalDocs, doc.Filename))
			result, err := r.classifier.Classify(ctx, doc.Pages, candidates, classify.Options{
				UseConfidence: req.Options.ComputeConfidence,
				NVotes:        r.cfg.ClassVotes,
				SystemPrompt:  req.Options.ClassifierPrompt,
				OCRText:       ocrText,
				Model:         r.cfg.ClassifyModel,
				Temperature:   r.cfg.Temperature,
			})
			if err != nil {
				r.log.Error("pipeline.classify_failed", "run_id", runID, "filename", doc.Filename, "error", err)
				errs = append(errs, fmt.Sprintf("classification failed: %v", err))
				docType = constants.LabelUnknown
			} else {
				docType = result.DocType
				confidence = result.Confidence
				logs = append(logs, fmt.Sprintf("Classified %s as %s", doc.Filename, docType))
			}
		}

		extracted := map[string]any{}
		fieldConfidence := map[string]float64{}

		switch {
		case constants.IsSentinelLabel(docType):
			warnings = append(warnings, "Document type is unknown. Extraction skipped.")
			report(fmt.Sprintf("Skipping extraction %d/%d • %s", idx+1, totalDocs, doc.Filename))

		default:
			schemaForDoc, ok := r.schemaFor(docType, doc.DocTypeOverride != "", req)
			if !ok {
				warnings = append(warnings, "No matching schema found. Extraction skipped.")
				report(fmt.Sprintf("No schema match %d/%d • %s", idx+1, totalDocs, doc.Filename))
				break
			}
			report(fmt.Sprintf("Extracting %d/%d • %s", idx+1, totalDocs, doc.Filename))

			nVotes := 1
			if req.Options.ComputeConfidence {
				nVotes = r.cfg.ExtractVotes
			}
			result, err := r.extractor.Extract(ctx, doc.Pages, schemaForDoc.Fields, extract.Options{
				OCRText:        ocrText,
				WithConfidence: req.Options.ComputeConfidence,
				NVotes:         nVotes,
				SystemPrompt:   req.Options.ExtractionPrompt,
				Model:          r.cfg.ExtractModel,
				Temperature:    r.cfg.Temperature,
			})
			if err != nil {
				r.log.Error("pipeline.extract_failed", "run_id", runID, "filename", doc.Filename, "error", err)
				errs = append(errs, fmt.Sprintf("extraction failed: %v", err))
				break
			}
			extracted = result.Metadata
			warnings = append(warnings, result.Warnings...)
			if req.Options.ComputeConfidence {
				fieldConfidence = result.Confidence
			}
		}

		documents = append(documents, runstore.RunDocument{
			Filename:              doc.Filename,
			DocumentType:          docType,
			DocumentTypeOriginal:  docType,
			DocumentTypeCorrected: docType,
			Confidence:            confidence,
			Extracted:             extracted,
			Corrected:             copyMetadata(extracted),
			FieldConfidence:       fieldConfidence,
			PreviewImage:          r.encodePreview(doc),
			Warnings:              warnings,
			Errors:                errs,
		})
	}

	run := &runstore.ExtractionRun{
		RunID:      runID,
		StartedAt:  startedAt,
		SchemaName: r.runLabel(req),
		Mode:       r.cfg.Mode,
		Status:     "completed",
		Logs:       logs,
		Documents:  documents,
	}
	if _, err := r.store.Save(run); err != nil {
		return nil, fmt.Errorf("persist run %s: %w", runID, err)
	}

	r.log.Info("pipeline.run_complete",
		"run_id", runID,
		"documents", len(documents),
		"schema", run.SchemaName,
	)
	return run, nil
}

// schemaFor resolves the extraction schema for a classified (or overridden)
// document type. Overridden documents may fall back to the batch default;
// classified ones never do: extraction against an undefined type is a policy
// violation, not a fallback opportunity.
func (r *Runner) schemaFor(docType string, overridden bool, req RunRequest) (schema.DocumentSchema, bool) {
	if sc, ok := req.Schemas[docType]; ok {
		return sc, true
	}
	if overridden && req.DefaultSchema != nil {
		return *req.DefaultSchema, true
	}
	return schema.DocumentSchema{}, false
}

func (r *Runner) runLabel(req RunRequest) string {
	if req.SchemaName != "" {
		return req.SchemaName
	}
	if req.DefaultSchema != nil {
		return req.DefaultSchema.Name
	}
	return "Classified"
}

// encodePreview embeds the lead page as a base64 thumbnail source, skipped
// for oversized pages to keep run.json reviewable in a text editor.
func (r *Runner) encodePreview(doc Document) string {
	if len(doc.Pages) == 0 {
		return ""
	}
	lead := doc.Pages[0]
	if len(lead.Data) > r.cfg.PreviewMaxBytes {
		return ""
	}
	return base64.StdEncoding.EncodeToString(lead.Data)
}

// candidateLabels is the classifier's label set: every registered schema name
// plus the sentinel labels, in deterministic order.
func candidateLabels(schemas map[string]schema.DocumentSchema) []string {
	names := make([]string, 0, len(schemas)+2)
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, constants.LabelUnknown, constants.LabelOther)
}

func copyMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
