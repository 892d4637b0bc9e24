package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yureehh/Extractly/internal/pipeline"
	"github.com/Yureehh/Extractly/internal/schema"
)

var (
	runSchemaName   string
	runTypeOverride string
	runEnableOCR    bool
	runConfidence   bool
)

var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Classify and extract metadata from documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSchemaName, "schema", "", "default schema for type-overridden documents")
	runCmd.Flags().StringVar(&runTypeOverride, "type", "", "skip classification and use this document type")
	runCmd.Flags().BoolVar(&runEnableOCR, "ocr", false, "run OCR on page images before classification")
	runCmd.Flags().BoolVar(&runConfidence, "confidence", false, "compute classification and per-field confidence via consensus voting")
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	docs := make([]pipeline.Document, 0, len(args))
	for _, path := range args {
		doc, err := a.resolver.Resolve(ctx, path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		doc.DocTypeOverride = runTypeOverride
		docs = append(docs, doc)
	}

	schemaMap, err := a.schemas.Map()
	if err != nil {
		return err
	}
	var defaultSchema *schema.DocumentSchema
	if runSchemaName != "" {
		sc, err := a.schemas.Get(runSchemaName)
		if err != nil {
			return fmt.Errorf("schema %q: %w", runSchemaName, err)
		}
		defaultSchema = &sc
	}

	run, err := a.runner.Run(ctx, pipeline.RunRequest{
		Documents:     docs,
		Schemas:       schemaMap,
		DefaultSchema: defaultSchema,
		SchemaName:    runSchemaName,
		Options: pipeline.Options{
			EnableOCR:         runEnableOCR,
			ComputeConfidence: runConfidence,
		},
		Progress: func(message string, fraction float64) {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", fraction*100, message)
		},
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
