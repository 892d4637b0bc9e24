package runstore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yureehh/Extractly/internal/common"
)

const runFileName = "run.json"

// Store persists runs under baseDir, one directory per run_id.
type Store struct {
	baseDir string
	log     *slog.Logger
}

func NewStore(baseDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	return &Store{baseDir: baseDir, log: logger}, nil
}

// CreateRunID returns a fresh run id: a UTC timestamp plus a short random
// suffix, so ids are collision-resistant and sort lexicographically by
// creation time.
func (s *Store) CreateRunID() string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]
	return fmt.Sprintf("run_%s_%s", ts, suffix)
}

// Save persists the full run. The record is written to a temp file and
// renamed into place, so a concurrent List or Load never observes a
// partially-written run.json.
func (s *Store) Save(run *ExtractionRun) (string, error) {
	runDir := filepath.Join(s.baseDir, run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(runDir, runFileName)
	if err := writeAtomic(path, run); err != nil {
		return "", err
	}
	s.log.Info("runstore.saved", "run_id", run.RunID, "documents", len(run.Documents))
	return path, nil
}

// List enumerates all persisted runs, most recent first.
func (s *Store) List() ([]RunSummary, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var summaries []RunSummary
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "run_") {
			continue
		}
		run, err := s.Load(entry.Name())
		if err != nil {
			// An unreadable run never blocks the listing.
			s.log.Warn("runstore.list.skip", "run_id", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, RunSummary{
			RunID:         run.RunID,
			StartedAt:     run.StartedAt,
			SchemaName:    run.SchemaName,
			Status:        run.Status,
			DocumentCount: len(run.Documents),
		})
	}

	// Run ids embed the creation timestamp, so reverse-lexicographic order is
	// most-recent-first.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RunID > summaries[j].RunID
	})
	return summaries, nil
}

// Load fetches one full run by id. Returns common.ErrNotFound (wrapped) when
// the run does not exist.
func (s *Store) Load(runID string) (*ExtractionRun, error) {
	path := filepath.Join(s.baseDir, runID, runFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %q: %w", runID, common.ErrNotFound)
		}
		return nil, fmt.Errorf("read run %q: %w", runID, err)
	}
	var run ExtractionRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %q: %w", runID, err)
	}
	return &run, nil
}

// Update overwrites a run's stored representation in full. Used when a
// reviewer edits a document's corrected fields; last write wins.
func (s *Store) Update(runID string, run *ExtractionRun) (string, error) {
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	path := filepath.Join(runDir, runFileName)
	if err := writeAtomic(path, run); err != nil {
		return "", err
	}
	s.log.Info("runstore.updated", "run_id", runID)
	return path, nil
}

func writeAtomic(path string, run *ExtractionRun) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), runFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp run file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close run file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish run file: %w", err)
	}
	return nil
}
