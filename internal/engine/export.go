package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/rcliao/tiered-memory/internal/dedup"
	"github.com/rcliao/tiered-memory/internal/embedding"
	"github.com/rcliao/tiered-memory/internal/model"
)

// ExportVersion is the document format version written by ExportJSON.
const ExportVersion = 1

// ExportDoc is the JSON export format. Embeddings are not exported.
type ExportDoc struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Records    []model.Record `json:"records"`
}

const importSchema = `{
  "type": "object",
  "required": ["version", "records"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exported_at": {"type": "string"},
    "records": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["content"],
        "properties": {
          "id": {"type": "string"},
          "content": {"type": "string", "minLength": 1},
          "category": {"enum": ["identity", "preference", "schedule", "important", "project", "general", ""]},
          "importance": {"type": "number", "minimum": 0, "maximum": 1},
          "access_count": {"type": "integer", "minimum": 0},
          "created_at": {"type": "string"},
          "last_access": {"type": "string"}
        }
      }
    }
  }
}`

// ExportJSON writes every long-term record, most important first.
func (e *Engine) ExportJSON(ctx context.Context, w io.Writer) (int, error) {
	records, err := e.store.ExportAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	if records == nil {
		records = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	doc := ExportDoc{Version: ExportVersion, ExportedAt: time.Now().UTC(), Records: records}
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	return len(records), nil
}

var markdownSections = []struct {
	title      string
	categories []string
}{
	{"User Profile", []string{model.CategoryIdentity}},
	{"Preferences", []string{model.CategoryPreference}},
	{"Important Events", []string{model.CategorySchedule, model.CategoryImportant}},
	{"Projects", []string{model.CategoryProject}},
	{"Other", []string{model.CategoryGeneral}},
}

// ExportMarkdown writes the long-term store as a profile document with one
// section per category group.
func (e *Engine) ExportMarkdown(ctx context.Context, w io.Writer) (int, error) {
	records, err := e.store.ExportAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}

	byCategory := make(map[string][]model.Record)
	for _, r := range records {
		cat := r.Category
		if !model.ValidCategories[cat] {
			cat = model.CategoryGeneral
		}
		byCategory[cat] = append(byCategory[cat], r)
	}

	var b strings.Builder
	b.WriteString("# Long-term Memory\n")
	for _, sec := range markdownSections {
		b.WriteString("\n## " + sec.title + "\n\n")
		for _, cat := range sec.categories {
			for _, r := range byCategory[cat] {
				fmt.Fprintf(&b, "- %s (%s)\n", r.Content, r.CreatedAt.Local().Format("2006-01-02"))
			}
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ImportReport counts the outcome of Import.
type ImportReport struct {
	Imported int `json:"imported"`
	Rejected int `json:"rejected"`
	Embedded int `json:"embedded"`
}

// Import reads an export document, validates it against the export schema and
// upserts its records in one transaction. Records missing an id get one from
// their content, and vectors are recomputed when an embedder is configured.
func (e *Engine) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(importSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("parse import: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid import document: %s", strings.Join(msgs, "; "))
	}

	var doc ExportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}

	report := &ImportReport{}
	now := time.Now().UTC()
	records := make([]model.Record, 0, len(doc.Records))
	for _, rec := range doc.Records {
		rec.Content = strings.TrimSpace(rec.Content)
		if !dedup.IsValid(rec.Content) {
			report.Rejected++
			continue
		}
		if rec.ID == "" {
			rec.ID = embedding.ContentHash(rec.Content)
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		if e.embedder != nil {
			if vec, err := e.embedder.Embed(ctx, rec.Content); err != nil {
				e.logger.Warn().Err(err).Str("id", rec.ID).Msg("Import embedding failed, storing without vector")
			} else {
				rec.Embedding = vec
				report.Embedded++
			}
		}
		records = append(records, rec)
	}

	if report.Imported, err = e.store.Import(ctx, records); err != nil {
		return nil, err
	}
	return report, nil
}
