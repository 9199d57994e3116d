package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a question source.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks a Format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported question source extension %q", filepath.Ext(path))
}

// LoadOptions configures Load.
type LoadOptions struct {
	// Source names the input in errors and logs (usually a file path).
	Source string

	// Logger receives one warning per dropped record. Defaults to slog.Default().
	Logger *slog.Logger

	// Validators overrides DefaultValidators when non-nil.
	Validators []Validator
}

// rawRecord mirrors the external record layout.
type rawRecord struct {
	ID            string          `json:"id"`
	Domain        string          `json:"domain"`
	Difficulty    string          `json:"difficulty"`
	Prompt        string          `json:"prompt"`
	Choices       []string        `json:"choices"`
	CorrectChoice json.RawMessage `json:"correct_choice"`
	Explanation   string          `json:"explanation"`
	Tags          []string        `json:"tags"`
}

// LoadFile opens path and loads it with the format implied by its extension.
func LoadFile(path string, opts LoadOptions) (*Bank, *LoadReport, error) {
	if opts.Source == "" {
		opts.Source = path
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, nil, &LoadError{Source: opts.Source, Err: err}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &LoadError{Source: opts.Source, Err: err}
	}
	defer f.Close()
	return Load(f, format, opts)
}

// Load parses every record in r, drops (and logs) invalid ones, and builds a
// Bank from the rest. It fails with *LoadError if r cannot be read or parsed,
// or if no record survives validation.
func Load(r io.Reader, format Format, opts LoadOptions) (*Bank, *LoadReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validators := opts.Validators
	if validators == nil {
		validators = DefaultValidators()
	}

	items, err := decodeDocument(r, format)
	if err != nil {
		return nil, nil, &LoadError{Source: opts.Source, Err: err}
	}

	report := &LoadReport{Source: opts.Source, Total: len(items)}
	seen := make(map[string]bool, len(items))
	records := make([]Record, 0, len(items))

	for pos, item := range items {
		d, verr := decodeDraft(pos, item)
		if verr == nil {
			verr = runValidators(validators, d, seen)
		}
		if verr != nil {
			merr := &MalformedRecordError{Position: pos, Err: verr}
			if d != nil {
				merr.ID = d.ID
			}
			report.Rejected = append(report.Rejected, merr)
			logger.Warn("dropping malformed question record",
				"source", opts.Source,
				"id", merr.ID,
				"position", pos,
				"validator", verr.Validator,
				"reason", verr.Message,
			)
			continue
		}
		seen[d.ID] = true
		records = append(records, resolve(d))
	}

	report.Accepted = len(records)
	if len(records) == 0 {
		return nil, report, &LoadError{Source: opts.Source, Err: ErrNoValidRecords}
	}

	b, err := New(records)
	if err != nil {
		return nil, report, &LoadError{Source: opts.Source, Err: err}
	}
	logger.Info("question bank loaded",
		"source", opts.Source,
		"records", report.Accepted,
		"rejected", len(report.Rejected),
		"domains", len(b.Domains()),
	)
	return b, report, nil
}

func runValidators(validators []Validator, d *Draft, seen map[string]bool) *ValidationError {
	for _, v := range validators {
		if verr := v.Validate(d, seen); verr != nil {
			return verr
		}
	}
	return nil
}

// decodeDocument reads the whole source and returns its records as generic
// JSON values. Both a bare list and {"questions": [...]} are accepted.
func decodeDocument(r io.Reader, format Format) ([]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var doc any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case FormatYAML:
		var y any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		// Normalize YAML scalars to the same types encoding/json produces,
		// so schema checks behave identically for both formats.
		b, err := json.Marshal(y)
		if err != nil {
			return nil, fmt.Errorf("normalize yaml: %w", err)
		}
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("normalize yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if qs, ok := v["questions"].([]any); ok {
			return qs, nil
		}
		return nil, fmt.Errorf("document has no \"questions\" list")
	case nil:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected document type %T", doc)
}

// decodeDraft checks the raw shape and decodes it into a Draft. The draft is
// returned even on schema failure when an id could be read, so the rejection
// can be reported by id.
func decodeDraft(pos int, item any) (*Draft, *ValidationError) {
	var partial *Draft
	if m, ok := item.(map[string]any); ok {
		if id, ok := m["id"].(string); ok {
			partial = &Draft{Position: pos, ID: id}
		}
	}

	if verr := checkShape(item); verr != nil {
		return partial, verr
	}

	b, err := json.Marshal(item)
	if err != nil {
		return partial, &ValidationError{Validator: "decode", Message: err.Error()}
	}
	var raw rawRecord
	if err := json.Unmarshal(b, &raw); err != nil {
		return partial, &ValidationError{Validator: "decode", Message: err.Error()}
	}

	d := &Draft{
		Position:    pos,
		ID:          raw.ID,
		Domain:      raw.Domain,
		Difficulty:  raw.Difficulty,
		Prompt:      raw.Prompt,
		Choices:     raw.Choices,
		Explanation: raw.Explanation,
		Tags:        raw.Tags,
	}
	if err := decodeCorrectChoice(raw.CorrectChoice, d); err != nil {
		return d, &ValidationError{Validator: "decode", Message: err.Error()}
	}
	return d, nil
}

// decodeCorrectChoice accepts either a 0-based index or the exact text.
func decodeCorrectChoice(raw json.RawMessage, d *Draft) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("correct_choice: %w", err)
		}
		d.CorrectText = &text
		return nil
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err != nil {
		// encoding/json renders integral floats like 2.0 as "2", so a failure
		// here means a genuinely fractional index.
		return fmt.Errorf("correct_choice must be an integer index or choice text: %w", err)
	}
	d.CorrectIndex = &idx
	return nil
}
