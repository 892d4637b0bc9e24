package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Yureehh/Extractly/internal/classify"
	"github.com/Yureehh/Extractly/internal/common"
	"github.com/Yureehh/Extractly/internal/export"
	"github.com/Yureehh/Extractly/internal/extract"
	"github.com/Yureehh/Extractly/internal/feedback"
	"github.com/Yureehh/Extractly/internal/ingest"
	"github.com/Yureehh/Extractly/internal/llm/openai"
	"github.com/Yureehh/Extractly/internal/ocr"
	"github.com/Yureehh/Extractly/internal/pipeline"
	"github.com/Yureehh/Extractly/internal/runstore"
	"github.com/Yureehh/Extractly/internal/schema"
)

var rootCmd = &cobra.Command{
	Use:           "extractly",
	Short:         "Schema-driven document metadata extraction",
	Long:          `Classify documents and extract structured field values with multi-vote consensus and run history.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(serveCmd)
}

// app bundles everything a command needs, wired once from env config.
type app struct {
	cfg      *common.Config
	schemas  *schema.Store
	runs     *runstore.Store
	runner   *pipeline.Runner
	resolver *ingest.Resolver
	feedback *feedback.Store
	exporter *export.Service
}

// newApp wires the application. needsLLM commands fail fast on a missing API
// key; storage-only commands (runs list, schemas ...) work without one.
func newApp(needsLLM bool) (*app, error) {
	cfg := common.LoadConfig()
	logger := slog.Default()

	if needsLLM && cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for this command")
	}

	schemaStore, err := schema.NewStore(cfg.Store.PrebuiltSchema, cfg.Store.CustomSchema, logger)
	if err != nil {
		return nil, err
	}
	runStore, err := runstore.NewStore(cfg.Store.RunsDir, logger)
	if err != nil {
		return nil, err
	}

	db, err := feedback.Open(cfg.Store.FeedbackDB)
	if err != nil {
		return nil, err
	}
	feedbackStore, err := feedback.NewStore(db, logger)
	if err != nil {
		return nil, err
	}

	completer := openai.NewClient(openai.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Timeout:      cfg.LLM.Timeout,
		MaxRetries:   cfg.LLM.MaxRetries,
		RetryBackoff: cfg.LLM.RetryBackoff,
	}, logger)

	classifier := classify.NewEngine(completer, logger)
	extractor := extract.NewEngine(completer, logger)
	ocrEngine := ocr.NewEngine(completer, ocr.Config{Model: cfg.LLM.OCRModel}, logger)

	runner := pipeline.NewRunner(pipeline.Config{
		ClassifyModel: cfg.LLM.ClassifyModel,
		ExtractModel:  cfg.LLM.ExtractModel,
		Temperature:   cfg.LLM.Temperature,
	}, classifier, extractor, ocrEngine, runStore, logger)

	resolver := ingest.NewResolver(ingest.Config{
		Pdftoppm: cfg.Ingest.Pdftoppm,
		DPI:      cfg.Ingest.DPI,
		MaxPages: cfg.Ingest.MaxPages,
	}, logger)

	return &app{
		cfg:      cfg,
		schemas:  schemaStore,
		runs:     runStore,
		runner:   runner,
		resolver: resolver,
		feedback: feedbackStore,
		exporter: export.NewService(logger),
	}, nil
}
