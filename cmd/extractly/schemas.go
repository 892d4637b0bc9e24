package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yureehh/Extractly/internal/schema"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Manage extraction schemas",
}

var schemasListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered schemas",
	Args:  cobra.NoArgs,
	RunE:  runSchemasList,
}

var schemasValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a schema payload file without saving it",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasValidate,
}

var schemasImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import schemas from an external JSON payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasImport,
}

var schemasExportCmd = &cobra.Command{
	Use:   "export [name]",
	Short: "Print one schema in its external JSON representation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemasExport,
}

func init() {
	schemasCmd.AddCommand(schemasListCmd)
	schemasCmd.AddCommand(schemasValidateCmd)
	schemasCmd.AddCommand(schemasImportCmd)
	schemasCmd.AddCommand(schemasExportCmd)
}

func runSchemasList(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	schemas, err := a.schemas.List()
	if err != nil {
		return err
	}
	for _, sc := range schemas {
		fmt.Printf("%-30s %-8s %d fields\n", sc.Name, sc.Version, len(sc.Fields))
	}
	return nil
}

func runSchemasValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	failed := false
	for name, raw := range payload {
		var sc schema.DocumentSchema
		if err := json.Unmarshal(raw, &sc); err != nil {
			fmt.Printf("%s: not a schema object: %v\n", name, err)
			failed = true
			continue
		}
		sc.Name = name
		res := schema.Validate(sc)
		for _, e := range res.Errors {
			fmt.Printf("%s: error: %s\n", name, e)
		}
		for _, w := range res.Warnings {
			fmt.Printf("%s: warning: %s\n", name, w)
		}
		if !res.IsValid() {
			failed = true
		} else if len(res.Warnings) == 0 {
			fmt.Printf("%s: ok\n", name)
		}
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func runSchemasImport(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	imported, skipped, err := a.schemas.Import(data)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d schema(s)", len(imported))
	if len(skipped) > 0 {
		fmt.Printf(", skipped %d invalid: %v", len(skipped), skipped)
	}
	fmt.Println()
	return nil
}

func runSchemasExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	sc, err := a.schemas.Get(args[0])
	if err != nil {
		return err
	}
	data, err := schema.Export(sc)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
