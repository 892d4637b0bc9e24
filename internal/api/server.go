// Package api exposes the review surface over HTTP: run listing and
// inspection, reviewer corrections, and run/feedback exports. Rendering is a
// client concern; this layer only moves run records.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Yureehh/Extractly/internal/common"
	"github.com/Yureehh/Extractly/internal/export"
	"github.com/Yureehh/Extractly/internal/feedback"
	"github.com/Yureehh/Extractly/internal/runstore"
)

type Server struct {
	runs     *runstore.Store
	feedback *feedback.Store
	exporter *export.Service
	log      *slog.Logger
}

func NewServer(runs *runstore.Store, fb *feedback.Store, exporter *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runs: runs, feedback: fb, exporter: exporter, log: logger}
}

// Routes wires the review endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Post("/runs/{runID}/documents/{index}/correction", s.handleCorrection)
	r.Get("/runs/{runID}/export.xlsx", s.handleExportRun)
	r.Get("/feedback.ndjson", s.handleExportFeedback)
	return r
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.runs.List()
	if err != nil {
		s.log.Error("api.runs.list_failed", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []runstore.RunSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// correctionRequest mutates only the reviewable projections of one document:
// corrected field values and the corrected document type. The original
// extracted output is never touched.
type correctionRequest struct {
	DocumentType string         `json:"document_type,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
}

func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(run.Documents) {
		jsonErr(w, "document index out of range", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}

	doc := &run.Documents[index]
	if req.DocumentType != "" {
		doc.DocumentTypeCorrected = req.DocumentType
		doc.DocumentType = req.DocumentType
	}
	for name, value := range req.Fields {
		if value == nil {
			delete(doc.Corrected, name)
			continue
		}
		doc.Corrected[name] = value
	}

	rec, err := s.feedback.Record(r.Context(), feedback.Record{
		DocID:                 fmt.Sprintf("%s:%d", run.RunID, index),
		Filename:              doc.Filename,
		SchemaName:            run.SchemaName,
		DocumentTypeOriginal:  doc.DocumentTypeOriginal,
		DocumentTypeCorrected: doc.DocumentTypeCorrected,
		Extracted:             doc.Extracted,
		Corrected:             doc.Corrected,
	})
	if err != nil {
		s.log.Error("api.correction.feedback_failed", "run_id", run.RunID, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}

	if _, err := s.runs.Update(run.RunID, run); err != nil {
		s.log.Error("api.correction.update_failed", "run_id", run.RunID, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"feedback_id":    rec.ID,
		"changed_fields": rec.ChangedFields,
	})
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	data, err := s.exporter.RunXLSX(run)
	if err != nil {
		s.log.Error("api.export.xlsx_failed", "run_id", run.RunID, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", run.RunID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleExportFeedback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.feedback.ExportNDJSON(r.Context(), w); err != nil {
		s.log.Error("api.feedback.export_failed", "error", err)
	}
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*runstore.ExtractionRun, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.runs.Load(runID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			jsonErr(w, "run not found", http.StatusNotFound)
			return nil, false
		}
		s.log.Error("api.runs.load_failed", "run_id", runID, "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
