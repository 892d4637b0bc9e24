package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/Yureehh/Extractly/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	server := api.NewServer(a.runs, a.feedback, a.exporter, slog.Default())
	slog.Info("serving review api", "addr", a.cfg.Server.HTTPAddr)
	return http.ListenAndServe(a.cfg.Server.HTTPAddr, server.Routes())
}
