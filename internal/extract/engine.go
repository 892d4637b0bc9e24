// Package extract turns document pages into schema-shaped field values via a
// vision-capable completion service, optionally running several independent
// passes and merging them into consensus values with per-field confidence.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Yureehh/Extractly/internal/llm"
	"github.com/Yureehh/Extractly/internal/schema"
)

// DefaultSystemPrompt is the extraction instruction used when the caller does
// not supply one.
const DefaultSystemPrompt = `You extract structured metadata from documents.
Return JSON only (no markdown, no commentary).
Rules:
- Keys must exactly match the provided field names.
- Use empty string when a value is missing or unreadable.
- Preserve the document's wording, casing, punctuation, and units.
- Do not infer or fabricate values not present in the document.
`

// DefaultTextBudget caps the OCR text attached to a single pass so the
// request stays inside the completion service's context limit.
const DefaultTextBudget = 64000

// Options controls one extraction decision.
type Options struct {
	OCRText        string
	WithConfidence bool
	NVotes         int
	SystemPrompt   string
	Model          string
	Temperature    float32
	TextBudget     int // 0 = DefaultTextBudget
}

// Result carries the merged field values. Metadata always contains exactly
// the schema's field names as keys; Confidence is empty unless confidence was
// requested.
type Result struct {
	Metadata   map[string]any
	Confidence map[string]float64
	Warnings   []string
}

// Engine runs extraction passes against an injected completion service.
type Engine struct {
	completer llm.ChatCompleter
	log       *slog.Logger
}

func NewEngine(completer llm.ChatCompleter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{completer: completer, log: logger}
}

// Extract produces field values for the given schema fields.
//
// Consensus voting runs only when confidence was requested and NVotes > 1:
// each pass is a fresh completion call, and per field the plurality of
// canonicalized values wins, non-empty values preferred on ties, then the
// first-encountered value. Confidence per field = winning votes / NVotes.
//
// An unparseable or empty completion is recoverable: it contributes an empty
// vote and a warning, never a hard failure. A transport error from the
// completion service propagates to the caller.
func (e *Engine) Extract(ctx context.Context, images []llm.Image, fields []schema.Field, opts Options) (Result, error) {
	start := time.Now()

	if !opts.WithConfidence || opts.NVotes <= 1 {
		res, err := e.singleExtract(ctx, images, fields, opts)
		if err != nil {
			return Result{}, err
		}
		e.log.Info("extract.ok",
			"fields", len(fields),
			"votes", 1,
			"warnings", len(res.Warnings),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return res, nil
	}

	res, err := e.consensusExtract(ctx, images, fields, opts)
	if err != nil {
		return Result{}, err
	}
	e.log.Info("extract.ok",
		"fields", len(fields),
		"votes", opts.NVotes,
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// singleExtract is one full extraction pass. When confidence was requested it
// asks the model for a metadata+confidence pair and keeps the model-reported
// scores (clamped to [0,1]).
func (e *Engine) singleExtract(ctx context.Context, images []llm.Image, fields []schema.Field, opts Options) (Result, error) {
	payload, warning, err := e.onePass(ctx, images, fields, opts, opts.WithConfidence)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if warning != "" {
		res.Warnings = append(res.Warnings, warning)
	}

	metadata := payload
	confidence := map[string]float64{}
	if opts.WithConfidence {
		if inner, ok := payload["metadata"].(map[string]any); ok {
			metadata = inner
		}
		if scores, ok := payload["confidence"].(map[string]any); ok {
			for name, v := range scores {
				if f, ok := v.(float64); ok {
					confidence[name] = clamp01(f)
				}
			}
		}
	}

	res.Metadata = normalize(metadata, fields)
	if opts.WithConfidence {
		res.Confidence = make(map[string]float64, len(fields))
		for _, f := range fields {
			res.Confidence[f.Name] = confidence[f.Name]
		}
	} else {
		res.Confidence = map[string]float64{}
	}
	return res, nil
}

// consensusExtract runs NVotes independent passes and merges them per field.
func (e *Engine) consensusExtract(ctx context.Context, images []llm.Image, fields []schema.Field, opts Options) (Result, error) {
	var res Result
	votes := make([]map[string]any, 0, opts.NVotes)
	parsed := 0
	for i := 0; i < opts.NVotes; i++ {
		payload, warning, err := e.onePass(ctx, images, fields, opts, false)
		if err != nil {
			return Result{}, fmt.Errorf("extraction pass %d/%d: %w", i+1, opts.NVotes, err)
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("pass %d: %s", i+1, warning))
		} else {
			parsed++
		}
		votes = append(votes, payload)
	}

	res.Metadata = make(map[string]any, len(fields))
	res.Confidence = make(map[string]float64, len(fields))

	// No pass produced any signal: all fields blank at zero confidence, not
	// an error.
	if parsed == 0 {
		for _, f := range fields {
			res.Metadata[f.Name] = ""
			res.Confidence[f.Name] = 0.0
		}
		res.Warnings = append(res.Warnings, "all extraction passes returned unparseable output")
		return res, nil
	}

	for _, f := range fields {
		value, conf := mergeField(f.Name, votes)
		res.Metadata[f.Name] = value
		res.Confidence[f.Name] = conf
	}
	return res, nil
}

// mergeField computes the plurality value of one field across all votes.
// Values are compared in canonical string form so structurally identical
// maps/arrays count as the same vote. Ties break toward non-empty values,
// then toward the first-encountered value.
func mergeField(name string, votes []map[string]any) (any, float64) {
	counts := make(map[string]int, len(votes))
	samples := make(map[string]any, len(votes))
	var order []string

	for _, vote := range votes {
		value, ok := vote[name]
		if !ok {
			value = ""
		}
		key := Canonical(value)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			samples[key] = value
		}
		counts[key]++
	}

	bestKey := ""
	bestCount := -1
	for _, key := range order {
		c := counts[key]
		switch {
		case c > bestCount:
			bestKey, bestCount = key, c
		case c == bestCount && strings.TrimSpace(key) != "" && strings.TrimSpace(bestKey) == "":
			bestKey = key
		}
	}

	return samples[bestKey], float64(bestCount) / float64(len(votes))
}

// onePass issues one completion call and decodes the reply leniently. The
// returned warning is non-empty when the reply could not be decoded; the
// payload is then empty rather than nil-on-error.
func (e *Engine) onePass(ctx context.Context, images []llm.Image, fields []schema.Field, opts Options, askConfidence bool) (map[string]any, string, error) {
	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}

	instructions := "Return a JSON object with keys exactly matching the field names."
	if askConfidence {
		instructions = "Return JSON with two objects: `metadata` (field values) and `confidence` (0-1 confidence per field)."
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		lines = append(lines, renderField(f))
	}
	sections := []string{instructions, "Fields:", strings.Join(lines, "\n")}

	if text := opts.OCRText; text != "" {
		budget := opts.TextBudget
		if budget <= 0 {
			budget = DefaultTextBudget
		}
		if len(text) > budget {
			text = text[:budget]
		}
		sections = append(sections, "OCR text:", text)
	}

	parts := []llm.ContentPart{llm.TextPart(strings.Join(sections, "\n"))}
	for _, img := range images {
		parts = append(parts, llm.ImagePart(img))
	}

	reply, err := e.completer.Complete(ctx, llm.ChatRequest{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Text: prompt},
			{Role: llm.RoleUser, Parts: parts},
		},
	})
	if err != nil {
		return nil, "", err
	}

	payload, ok := llm.DecodeObject(reply)
	if !ok {
		return map[string]any{}, "model reply was not a JSON object; treated as empty", nil
	}
	return payload, "", nil
}

// renderField formats one schema field for the prompt:
// "- name (type, required|optional)[ enum: v1, v2][ - description]".
func renderField(f schema.Field) string {
	requirement := "optional"
	if f.Required {
		requirement = "required"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s, %s)", f.Name, f.Type, requirement)
	if len(f.EnumValues) > 0 {
		b.WriteString(" enum: " + strings.Join(f.EnumValues, ", "))
	}
	if f.Description != "" {
		b.WriteString(" - " + f.Description)
	}
	return b.String()
}

// normalize enforces the closed-world guarantee: output keys are exactly the
// schema's field names, extras dropped, missing filled with empty strings.
func normalize(metadata map[string]any, fields []schema.Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := metadata[f.Name]; ok && v != nil {
			out[f.Name] = v
			continue
		}
		out[f.Name] = ""
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
