package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yureehh/Extractly/internal/classify"
	"github.com/Yureehh/Extractly/internal/extract"
	"github.com/Yureehh/Extractly/internal/llm"
	"github.com/Yureehh/Extractly/internal/ocr"
	"github.com/Yureehh/Extractly/internal/runstore"
	"github.com/Yureehh/Extractly/internal/schema"
)

// routedCompleter dispatches on the system prompt, so one fake can play the
// classifier, the extractor, and the OCR engine at once.
type routedCompleter struct {
	classify func(req llm.ChatRequest) (string, error)
	extract  func(req llm.ChatRequest) (string, error)
	ocr      func(req llm.ChatRequest) (string, error)

	classifyCalls int
	extractCalls  int
	ocrCalls      int
}

func (r *routedCompleter) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	system := req.Messages[0].Text
	switch {
	case system == classify.DefaultSystemPrompt:
		r.classifyCalls++
		if r.classify == nil {
			return "", errors.New("unexpected classification call")
		}
		return r.classify(req)
	case system == extract.DefaultSystemPrompt:
		r.extractCalls++
		if r.extract == nil {
			return "", errors.New("unexpected extraction call")
		}
		return r.extract(req)
	case system == ocr.DefaultPrompt:
		r.ocrCalls++
		if r.ocr == nil {
			return "", errors.New("unexpected ocr call")
		}
		return r.ocr(req)
	default:
		return "", fmt.Errorf("unknown system prompt: %q", system)
	}
}

func userText(req llm.ChatRequest) string {
	var b strings.Builder
	for _, part := range req.Messages[1].Parts {
		b.WriteString(part.Text)
		b.WriteString("\n")
	}
	return b.String()
}

var invoiceSchema = schema.DocumentSchema{
	Name:    "Invoice",
	Version: "v1",
	Fields:  []schema.Field{{Name: "total", Type: "number", Required: true}},
}

func newTestRunner(t *testing.T, cfg Config, fake *routedCompleter) (*Runner, *runstore.Store) {
	t.Helper()
	store, err := runstore.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	runner := NewRunner(cfg,
		classify.NewEngine(fake, nil),
		extract.NewEngine(fake, nil),
		ocr.NewEngine(fake, ocr.Config{}, nil),
		store, nil)
	return runner, store
}

func TestRun_OneFailureNeverAbortsSiblings(t *testing.T) {
	fake := &routedCompleter{
		classify: func(req llm.ChatRequest) (string, error) {
			if strings.Contains(userText(req), "broken doc") {
				return "", errors.New("connection reset")
			}
			return "Invoice", nil
		},
		extract: func(llm.ChatRequest) (string, error) {
			return `{"total": "12.50"}`, nil
		},
	}
	runner, store := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{
			{Filename: "a.txt", Text: "alpha invoice"},
			{Filename: "b.txt", Text: "broken doc"},
			{Filename: "c.txt", Text: "gamma invoice"},
		},
		Schemas: map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	require.Len(t, run.Documents, 3)

	// healthy siblings extracted normally, in upload order
	for _, i := range []int{0, 2} {
		doc := run.Documents[i]
		assert.Equal(t, "Invoice", doc.DocumentType)
		assert.Equal(t, map[string]any{"total": "12.50"}, doc.Extracted)
		assert.Empty(t, doc.Errors)
	}
	assert.Equal(t, "a.txt", run.Documents[0].Filename)
	assert.Equal(t, "c.txt", run.Documents[2].Filename)

	// the failing document is recorded, not dropped
	failed := run.Documents[1]
	assert.Equal(t, "b.txt", failed.Filename)
	assert.Equal(t, "Unknown", failed.DocumentType)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "classification failed")
	assert.Empty(t, failed.Extracted)
	assert.Contains(t, failed.Warnings, "Document type is unknown. Extraction skipped.")

	// and the whole run is persisted
	persisted, err := store.Load(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, persisted)
}

func TestRun_UnknownTypeSkipsExtraction(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Unknown", nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "mystery.txt", Text: "???"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	require.Len(t, run.Documents, 1)

	doc := run.Documents[0]
	assert.Equal(t, "Unknown", doc.DocumentType)
	assert.Equal(t, map[string]any{}, doc.Extracted)
	assert.Equal(t, map[string]any{}, doc.Corrected)
	assert.Empty(t, doc.FieldConfidence)
	assert.Empty(t, doc.Errors)
	assert.Contains(t, doc.Warnings, "Document type is unknown. Extraction skipped.")
	assert.Equal(t, 0, fake.extractCalls)
}

func TestRun_NoMatchingSchemaSkipsExtraction(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Receipt", nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "r.txt", Text: "a receipt"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	doc := run.Documents[0]
	assert.Equal(t, "Receipt", doc.DocumentType)
	assert.Contains(t, doc.Warnings, "No matching schema found. Extraction skipped.")
	assert.Equal(t, 0, fake.extractCalls)
}

func TestRun_OverrideSkipsClassification(t *testing.T) {
	fake := &routedCompleter{
		extract: func(llm.ChatRequest) (string, error) { return `{"total": "9.99"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "a.txt", Text: "x", DocTypeOverride: "Invoice"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	doc := run.Documents[0]
	assert.Equal(t, 0, fake.classifyCalls)
	assert.Equal(t, "Invoice", doc.DocumentType)
	assert.Nil(t, doc.Confidence)
	assert.Equal(t, map[string]any{"total": "9.99"}, doc.Extracted)
	assert.Contains(t, strings.Join(run.Logs, "\n"), "Using provided document type for a.txt: Invoice")
}

func TestRun_OverrideFallsBackToDefaultSchema(t *testing.T) {
	var seen string
	fake := &routedCompleter{
		extract: func(req llm.ChatRequest) (string, error) {
			seen = userText(req)
			return `{"parties": "ACME / Globex"}`, nil
		},
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	contract := schema.DocumentSchema{
		Name:   "Contract",
		Fields: []schema.Field{{Name: "parties", Type: "string"}},
	}
	run, err := runner.Run(context.Background(), RunRequest{
		Documents:     []Document{{Filename: "c.txt", Text: "x", DocTypeOverride: "SomethingElse"}},
		Schemas:       map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
		DefaultSchema: &contract,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"parties": "ACME / Globex"}, run.Documents[0].Extracted)
	assert.Contains(t, seen, "parties")
	assert.Equal(t, "Contract", run.SchemaName)
}

func TestRun_ConfidenceVoting(t *testing.T) {
	classifyVotes := []string{"Invoice", "Invoice", "Receipt"}
	fake := &routedCompleter{}
	fake.classify = func(llm.ChatRequest) (string, error) {
		return classifyVotes[(fake.classifyCalls-1)%len(classifyVotes)], nil
	}
	fake.extract = func(llm.ChatRequest) (string, error) {
		return `{"total": "12.50"}`, nil
	}
	runner, _ := newTestRunner(t, Config{ClassVotes: 3, ExtractVotes: 3}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "a.txt", Text: "x"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
		Options:   Options{ComputeConfidence: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, fake.classifyCalls)
	assert.Equal(t, 3, fake.extractCalls)

	doc := run.Documents[0]
	assert.Equal(t, "Invoice", doc.DocumentType)
	require.NotNil(t, doc.Confidence)
	assert.InDelta(t, 2.0/3.0, *doc.Confidence, 1e-9)
	assert.InDelta(t, 1.0, doc.FieldConfidence["total"], 1e-9)
}

func TestRun_OCRFeedsClassifier(t *testing.T) {
	var classifySaw string
	fake := &routedCompleter{
		ocr: func(llm.ChatRequest) (string, error) { return "ACME Corp invoice no 42", nil },
		classify: func(req llm.ChatRequest) (string, error) {
			classifySaw = userText(req)
			return "Invoice", nil
		},
		extract: func(llm.ChatRequest) (string, error) { return `{"total": "1"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	page := llm.Image{MediaType: "image/png", Data: []byte("fakepng")}
	_, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "scan.png", Pages: []llm.Image{page}}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
		Options:   Options{EnableOCR: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.ocrCalls)
	assert.Contains(t, classifySaw, "ACME Corp invoice no 42")
}

func TestRun_CorrectedIsIndependentCopy(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Invoice", nil },
		extract:  func(llm.ChatRequest) (string, error) { return `{"total": "12.50"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "a.txt", Text: "x"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)

	doc := run.Documents[0]
	assert.Equal(t, doc.Extracted, doc.Corrected)
	doc.Corrected["total"] = "999"
	assert.Equal(t, "12.50", doc.Extracted["total"])
}

func TestRun_ProgressFractions(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Invoice", nil },
		extract:  func(llm.ChatRequest) (string, error) { return `{"total": "1"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	var fractions []float64
	_, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{
			{Filename: "a.txt", Text: "x"},
			{Filename: "b.txt", Text: "y"},
		},
		Schemas: map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
		Progress: func(_ string, fraction float64) {
			fractions = append(fractions, fraction)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1.0}, fractions)
}

func TestRun_PreviewEmbedsSmallLeadPage(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Invoice", nil },
		extract:  func(llm.ChatRequest) (string, error) { return `{"total": "1"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{PreviewMaxBytes: 16}, fake)

	small := llm.Image{MediaType: "image/png", Data: []byte("tiny")}
	big := llm.Image{MediaType: "image/png", Data: []byte("waaaay too big for preview")}
	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{
			{Filename: "small.png", Pages: []llm.Image{small}},
			{Filename: "big.png", Pages: []llm.Image{big}},
		},
		Schemas: map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(small.Data), run.Documents[0].PreviewImage)
	assert.Empty(t, run.Documents[1].PreviewImage)
}

func TestRunLabel(t *testing.T) {
	fake := &routedCompleter{
		classify: func(llm.ChatRequest) (string, error) { return "Invoice", nil },
		extract:  func(llm.ChatRequest) (string, error) { return `{"total": "1"}`, nil },
	}
	runner, _ := newTestRunner(t, Config{}, fake)

	run, err := runner.Run(context.Background(), RunRequest{
		Documents: []Document{{Filename: "a.txt", Text: "x"}},
		Schemas:   map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
	})
	require.NoError(t, err)
	assert.Equal(t, "Classified", run.SchemaName)
	assert.Equal(t, "Accurate", run.Mode)
	assert.Equal(t, "completed", run.Status)

	run, err = runner.Run(context.Background(), RunRequest{
		Documents:  []Document{{Filename: "a.txt", Text: "x"}},
		Schemas:    map[string]schema.DocumentSchema{"Invoice": invoiceSchema},
		SchemaName: "Invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoice", run.SchemaName)
}

func TestCandidateLabels(t *testing.T) {
	labels := candidateLabels(map[string]schema.DocumentSchema{
		"Receipt": {}, "Invoice": {}, "Contract": {},
	})
	assert.Equal(t, []string{"Contract", "Invoice", "Receipt", "Unknown", "Other"}, labels)
}
