// Package export renders a persisted run as an XLSX workbook for tabular
// review outside the app.
package export

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Yureehh/Extractly/internal/runstore"
)

// Service produces XLSX bytes for run exports.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RunXLSX returns a workbook with one row per document: filename, resolved
// type, classification confidence, then one column per corrected field. The
// field column set is the first-seen union across documents, which for
// extracted documents equals the schema's field set.
func (s *Service) RunXLSX(run *runstore.ExtractionRun) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIndex, _ := f.GetSheetIndex("Sheet1"); defIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	fieldColumns := fieldUnion(run.Documents)
	headers := append([]string{"Filename", "Document Type", "Confidence"}, fieldColumns...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for rowIdx, doc := range run.Documents {
		row := rowIdx + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, doc.Filename)
		write(2, doc.DocumentType)
		if doc.Confidence != nil {
			write(3, *doc.Confidence)
		} else {
			write(3, "")
		}
		for i, name := range fieldColumns {
			value := ""
			if v, ok := doc.Corrected[name]; ok && v != nil {
				value = fmt.Sprint(v)
			}
			write(4+i, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", run.RunID,
		"documents", len(run.Documents),
		"columns", len(headers),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// fieldUnion collects corrected field names across documents in first-seen
// order, document order first.
func fieldUnion(docs []runstore.RunDocument) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, doc := range docs {
		for _, name := range sortedKeys(doc.Corrected) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic column order regardless of map iteration.
	sort.Strings(keys)
	return keys
}
