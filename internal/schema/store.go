package schema

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Yureehh/Extractly/internal/common"
)

// Store persists schemas as two JSON files keyed by schema name: a prebuilt
// tier shipped with the app and a custom tier owned by the user. A custom
// schema shadows a prebuilt one of the same name.
type Store struct {
	prebuiltPath string
	customPath   string
	log          *slog.Logger
}

func NewStore(prebuiltPath, customPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{prebuiltPath: prebuiltPath, customPath: customPath, log: logger}
	for _, path := range []string{prebuiltPath, customPath} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create schema dir: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := writePayload(path, map[string]json.RawMessage{}); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// List returns every schema, custom shadowing prebuilt, sorted by name.
func (s *Store) List() ([]DocumentSchema, error) {
	prebuilt, err := loadPayload(s.prebuiltPath)
	if err != nil {
		return nil, err
	}
	custom, err := loadPayload(s.customPath)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]DocumentSchema)
	for name, raw := range prebuilt {
		merged[name] = parseEntry(name, raw)
	}
	for name, raw := range custom {
		merged[name] = parseEntry(name, raw)
	}

	out := make([]DocumentSchema, 0, len(merged))
	for _, sc := range merged {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// Get returns the schema registered under name, custom tier first.
// Returns common.ErrNotFound when no tier has it.
func (s *Store) Get(name string) (DocumentSchema, error) {
	for _, path := range []string{s.customPath, s.prebuiltPath} {
		payload, err := loadPayload(path)
		if err != nil {
			return DocumentSchema{}, err
		}
		if raw, ok := payload[name]; ok {
			return parseEntry(name, raw), nil
		}
	}
	return DocumentSchema{}, fmt.Errorf("schema %q: %w", name, common.ErrNotFound)
}

// Map returns all schemas keyed by name, for pipeline lookup.
func (s *Store) Map() (map[string]DocumentSchema, error) {
	list, err := s.List()
	if err != nil {
		return nil, err
	}
	m := make(map[string]DocumentSchema, len(list))
	for _, sc := range list {
		m[sc.Name] = sc
	}
	return m, nil
}

// Save validates the schema and, when valid, writes it to the custom tier.
// Storage is never mutated on validation errors; the result is returned either
// way so callers can surface warnings.
func (s *Store) Save(sc DocumentSchema) (ValidationResult, error) {
	res := Validate(sc)
	if !res.IsValid() {
		return res, nil
	}

	custom, err := loadPayload(s.customPath)
	if err != nil {
		return res, err
	}
	raw, err := json.Marshal(sc)
	if err != nil {
		return res, fmt.Errorf("encode schema: %w", err)
	}
	custom[sc.Name] = raw
	if err := writePayload(s.customPath, custom); err != nil {
		return res, err
	}
	s.log.Info("schema.saved", "name", sc.Name, "fields", len(sc.Fields), "warnings", len(res.Warnings))
	return res, nil
}

// Delete removes a schema by name, custom tier first. Returns false when no
// tier had it.
func (s *Store) Delete(name string) (bool, error) {
	for _, path := range []string{s.customPath, s.prebuiltPath} {
		payload, err := loadPayload(path)
		if err != nil {
			return false, err
		}
		if _, ok := payload[name]; ok {
			delete(payload, name)
			if err := writePayload(path, payload); err != nil {
				return false, err
			}
			s.log.Info("schema.deleted", "name", name)
			return true, nil
		}
	}
	return false, nil
}

// Import merges an external payload ({name: {description, version, fields}}
// or {name: [fields]}) into the custom tier. The payload shape is checked
// against a JSON Schema at this boundary; entries failing either the shape
// check or schema validation are skipped and reported, never imported.
func (s *Store) Import(data []byte) (imported []DocumentSchema, skipped []string, err error) {
	if err := validateImportPayload(data); err != nil {
		return nil, nil, fmt.Errorf("import payload: %w", err)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode import payload: %w", err)
	}

	custom, err := loadPayload(s.customPath)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(payload))
	for name := range payload {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := parseEntry(name, payload[name])
		if res := Validate(sc); !res.IsValid() {
			s.log.Warn("schema.import.skipped", "name", name, "errors", res.Errors)
			skipped = append(skipped, name)
			continue
		}
		raw, merr := json.Marshal(sc)
		if merr != nil {
			return nil, nil, fmt.Errorf("encode schema %q: %w", name, merr)
		}
		custom[name] = raw
		imported = append(imported, sc)
	}

	if err := writePayload(s.customPath, custom); err != nil {
		return nil, nil, err
	}
	s.log.Info("schema.imported", "count", len(imported), "skipped", len(skipped))
	return imported, skipped, nil
}

// Export renders one schema in its external representation.
func Export(sc DocumentSchema) ([]byte, error) {
	return json.MarshalIndent(map[string]DocumentSchema{sc.Name: sc}, "", "  ")
}

// importPayloadSchema is the JSON Schema the external payload must satisfy.
// Two on-disk variants are accepted (bare field list, or full object); both
// normalize into DocumentSchema immediately on load.
const importPayloadSchema = `{
  "type": "object",
  "additionalProperties": {
    "oneOf": [
      {"type": "array", "items": {"$ref": "#/$defs/field"}},
      {
        "type": "object",
        "properties": {
          "description": {"type": "string"},
          "version": {"type": "string"},
          "fields": {"type": "array", "items": {"$ref": "#/$defs/field"}}
        },
        "required": ["fields"]
      }
    ]
  },
  "$defs": {
    "field": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "type": {"type": "string"},
        "field_type": {"type": "string"},
        "required": {"type": "boolean"},
        "description": {"type": "string"},
        "example": {"type": "string"},
        "enum": {"type": "array", "items": {"type": "string"}},
        "enum_values": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["name"]
    }
  }
}`

func validateImportPayload(data []byte) error {
	sch, err := jsonschema.CompileString("schemas.json", importPayloadSchema)
	if err != nil {
		return fmt.Errorf("compile payload schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("payload does not match expected shape: %w", err)
	}
	return nil
}

// wireField tolerates both external field spellings (type/field_type,
// enum/enum_values). The variant never leaves this file.
type wireField struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	FieldType   string   `json:"field_type"`
	Required    bool     `json:"required"`
	Description string   `json:"description"`
	Example     string   `json:"example"`
	Enum        []string `json:"enum"`
	EnumValues  []string `json:"enum_values"`
}

func (w wireField) normalize() Field {
	ft := w.Type
	if ft == "" {
		ft = w.FieldType
	}
	if ft == "" {
		ft = "string"
	}
	enum := w.Enum
	if len(enum) == 0 {
		enum = w.EnumValues
	}
	return Field{
		Name:        strings.TrimSpace(w.Name),
		Type:        ft,
		Required:    w.Required,
		Description: w.Description,
		Example:     w.Example,
		EnumValues:  enum,
	}
}

type wireSchema struct {
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Fields      []wireField `json:"fields"`
}

// parseEntry normalizes one payload entry (bare list or full object) into the
// canonical in-memory form.
func parseEntry(name string, raw json.RawMessage) DocumentSchema {
	var bare []wireField
	if err := json.Unmarshal(raw, &bare); err == nil {
		return DocumentSchema{Name: name, Version: "v1", Fields: normalizeFields(bare)}
	}

	var ws wireSchema
	if err := json.Unmarshal(raw, &ws); err != nil {
		return DocumentSchema{Name: name, Version: "v1"}
	}
	version := ws.Version
	if version == "" {
		version = "v1"
	}
	return DocumentSchema{
		Name:        name,
		Description: ws.Description,
		Version:     version,
		Fields:      normalizeFields(ws.Fields),
	}
}

func normalizeFields(in []wireField) []Field {
	out := make([]Field, len(in))
	for i, w := range in {
		out[i] = w.normalize()
	}
	return out
}

func loadPayload(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	payload := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &payload); err != nil {
		// A corrupt file is treated as empty rather than blocking every
		// schema operation.
		return map[string]json.RawMessage{}, nil
	}
	return payload, nil
}

func writePayload(path string, payload map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
