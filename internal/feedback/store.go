package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one captured correction.
type Record struct {
	ID                    string         `json:"id"`
	DocID                 string         `json:"doc_id"`
	Filename              string         `json:"filename"`
	SchemaName            string         `json:"schema_name"`
	DocumentTypeOriginal  string         `json:"document_type_original"`
	DocumentTypeCorrected string         `json:"document_type_corrected"`
	Extracted             map[string]any `json:"metadata_extracted"`
	Corrected             map[string]any `json:"metadata_corrected"`
	ChangedFields         []string       `json:"changed_fields"`
	Timestamp             string         `json:"timestamp"`
}

const ddl = `
CREATE TABLE IF NOT EXISTS feedback_records (
    id                      TEXT PRIMARY KEY,
    doc_id                  TEXT NOT NULL,
    filename                TEXT NOT NULL DEFAULT '',
    schema_name             TEXT NOT NULL DEFAULT '',
    document_type_original  TEXT NOT NULL DEFAULT '',
    document_type_corrected TEXT NOT NULL DEFAULT '',
    metadata_extracted      TEXT NOT NULL DEFAULT '{}',
    metadata_corrected      TEXT NOT NULL DEFAULT '{}',
    changed_fields          TEXT NOT NULL DEFAULT '[]',
    created_at              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback_records(created_at DESC);
`

// Open opens (creating if needed) the feedback database with production-safe
// pragmas.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create feedback dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open feedback db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}
	return db, nil
}

// Store persists feedback records in sqlite.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore applies the table schema and returns a Store.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("feedback: db is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("feedback schema: %w", err)
		}
	}
	return &Store{db: db, log: logger}, nil
}

// Record persists one correction. ID, ChangedFields, and Timestamp are filled
// in when absent.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if rec.ChangedFields == nil {
		rec.ChangedFields = ChangedFields(rec.Extracted, rec.Corrected)
	}

	extracted, err := json.Marshal(rec.Extracted)
	if err != nil {
		return rec, fmt.Errorf("encode extracted: %w", err)
	}
	corrected, err := json.Marshal(rec.Corrected)
	if err != nil {
		return rec, fmt.Errorf("encode corrected: %w", err)
	}
	changed, err := json.Marshal(rec.ChangedFields)
	if err != nil {
		return rec, fmt.Errorf("encode changed fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO feedback_records
		 (id, doc_id, filename, schema_name, document_type_original, document_type_corrected,
		  metadata_extracted, metadata_corrected, changed_fields, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DocID, rec.Filename, rec.SchemaName,
		rec.DocumentTypeOriginal, rec.DocumentTypeCorrected,
		string(extracted), string(corrected), string(changed), rec.Timestamp,
	)
	if err != nil {
		return rec, fmt.Errorf("insert feedback: %w", err)
	}

	s.log.Info("feedback.recorded",
		"id", rec.ID,
		"doc_id", rec.DocID,
		"changed_fields", len(rec.ChangedFields),
	)
	return rec, nil
}

// List returns all records, oldest first.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, filename, schema_name, document_type_original, document_type_corrected,
		        metadata_extracted, metadata_corrected, changed_fields, created_at
		 FROM feedback_records ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var extracted, corrected, changed string
		if err := rows.Scan(
			&rec.ID, &rec.DocID, &rec.Filename, &rec.SchemaName,
			&rec.DocumentTypeOriginal, &rec.DocumentTypeCorrected,
			&extracted, &corrected, &changed, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		if err := json.Unmarshal([]byte(extracted), &rec.Extracted); err != nil {
			rec.Extracted = map[string]any{}
		}
		if err := json.Unmarshal([]byte(corrected), &rec.Corrected); err != nil {
			rec.Corrected = map[string]any{}
		}
		if err := json.Unmarshal([]byte(changed), &rec.ChangedFields); err != nil {
			rec.ChangedFields = nil
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExportNDJSON writes every record as one JSON object per line.
func (s *Store) ExportNDJSON(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode feedback record: %w", err)
		}
	}
	return nil
}
