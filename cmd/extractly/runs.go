package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted extraction runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print one full run record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsExportOut string

var runsExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a run as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsExport,
}

func init() {
	runsExportCmd.Flags().StringVar(&runsExportOut, "out", "", "output file path (default <run-id>.xlsx)")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	summaries, err := a.runs.List()
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-24s  %-20s  %d docs  %s\n", s.RunID, s.StartedAt, s.SchemaName, s.DocumentCount, s.Status)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	run, err := a.runs.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	run, err := a.runs.Load(args[0])
	if err != nil {
		return err
	}
	data, err := a.exporter.RunXLSX(run)
	if err != nil {
		return err
	}
	out := runsExportOut
	if out == "" {
		out = run.RunID + ".xlsx"
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
