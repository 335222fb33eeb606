package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// ExportFormat specifies the output format for strategy export.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures strategy export behavior.
type ExportOptions struct {
	Format          ExportFormat
	IncludeMetadata bool
	PrettyPrint     bool
	AddComments     bool
}

// DefaultExportOptions returns the default export options.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          FormatYAML,
		IncludeMetadata: true,
		PrettyPrint:     true,
		AddComments:     true,
	}
}

// ImportOptions configures strategy import behavior.
type ImportOptions struct {
	// ValidateStrict runs full Validate(); otherwise ValidateQuick() runs.
	ValidateStrict bool

	// GenerateNewID assigns a fresh strategy ID to the imported document.
	GenerateNewID bool

	// OverrideMetadata lets the caller stamp document-level fields on import.
	OverrideMetadata *DocumentMetadata
}

// DefaultImportOptions returns the default import options.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ValidateStrict: true,
		GenerateNewID:  true,
	}
}

// Export serializes a document to the specified format.
func Export(doc *Document, opts ExportOptions) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	exportDoc := *doc

	if opts.IncludeMetadata {
		exportDoc.Metadata.UpdatedAt = time.Now()
		if exportDoc.Metadata.SchemaVersion == "" {
			exportDoc.Metadata.SchemaVersion = SchemaVersion
		}
		if exportDoc.Metadata.Source == "" {
			exportDoc.Metadata.Source = "export"
		}
	}

	switch opts.Format {
	case FormatYAML:
		return exportToYAML(&exportDoc, opts)
	case FormatJSON:
		return exportToJSON(&exportDoc, opts)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
}

func exportToYAML(doc *Document, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer

	if opts.AddComments {
		buf.WriteString("# arbcore strategy configuration\n")
		buf.WriteString(fmt.Sprintf("# Schema Version: %s\n", doc.Metadata.SchemaVersion))
		buf.WriteString(fmt.Sprintf("# Exported: %s\n", time.Now().Format(time.RFC3339)))
		buf.WriteString("\n")
	}

	encoder := yaml.NewEncoder(&buf)
	if opts.PrettyPrint {
		encoder.SetIndent(2)
	}

	if err := encoder.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode document to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	return buf.Bytes(), nil
}

func exportToJSON(doc *Document, opts ExportOptions) ([]byte, error) {
	if opts.PrettyPrint {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode document to JSON: %w", err)
		}
		return data, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document to JSON: %w", err)
	}
	return data, nil
}

// ExportToFile exports a document to a file, inferring format from the
// extension when Format is unset.
func ExportToFile(doc *Document, path string, opts ExportOptions) error {
	if opts.Format == "" {
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			opts.Format = FormatYAML
		case ".json":
			opts.Format = FormatJSON
		default:
			opts.Format = FormatYAML
		}
	}

	data, err := Export(doc, opts)
	if err != nil {
		return fmt.Errorf("failed to export document: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write document file: %w", err)
	}

	return nil
}

// Import deserializes a document from bytes, auto-detecting YAML or JSON.
func Import(data []byte, opts ImportOptions) (*Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document data")
	}

	var doc Document
	var parseErr error

	isJSON := false
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isJSON = b == '{' || b == '['
		break
	}

	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
				parseErr = fmt.Errorf("failed to parse as JSON (%v) or YAML (%v)", err, yamlErr)
			}
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
				parseErr = fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
			}
		}
	}

	if parseErr != nil {
		return nil, parseErr
	}

	if opts.GenerateNewID {
		doc.Strategy.ID = uuid.New()
	}

	if opts.OverrideMetadata != nil {
		if opts.OverrideMetadata.Description != "" {
			doc.Metadata.Description = opts.OverrideMetadata.Description
		}
		if opts.OverrideMetadata.Author != "" {
			doc.Metadata.Author = opts.OverrideMetadata.Author
		}
		if len(opts.OverrideMetadata.Tags) > 0 {
			doc.Metadata.Tags = opts.OverrideMetadata.Tags
		}
	}

	doc.Metadata.UpdatedAt = time.Now()
	if doc.Metadata.Source == "" {
		doc.Metadata.Source = "import"
	}

	if opts.ValidateStrict {
		if err := doc.Validate(); err != nil {
			return nil, fmt.Errorf("document validation failed: %w", err)
		}
	} else {
		if err := doc.ValidateQuick(); err != nil {
			return nil, fmt.Errorf("document validation failed: %w", err)
		}
	}

	return &doc, nil
}

// ImportFromFile imports a document from a file.
func ImportFromFile(path string, opts ImportOptions) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}

	doc, err := Import(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import document from %s: %w", path, err)
	}

	return doc, nil
}

// ImportFromReader imports a document from an io.Reader.
func ImportFromReader(r io.Reader, opts ImportOptions) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %w", err)
	}

	return Import(data, opts)
}

// Clone creates a deep copy of a document with a fresh strategy ID.
func Clone(doc *Document) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	clone := doc.DeepCopy()
	if clone == nil {
		return nil, fmt.Errorf("failed to deep copy document")
	}

	clone.Strategy.ID = uuid.New()
	now := time.Now()
	clone.Metadata.CreatedAt = now
	clone.Metadata.UpdatedAt = now
	clone.Metadata.Source = "clone"

	return clone, nil
}

// Merge merges two documents, with override's StrategyParams fields taking
// precedence wherever they are set. StrategyParams fields are pointers, so
// "set" and "zero" are distinguishable -- unlike a plain float, a pointer
// left nil in override never clobbers base's value.
func Merge(base, override *Document) (*Document, error) {
	if base == nil {
		return nil, fmt.Errorf("base document cannot be nil")
	}

	result, err := Clone(base)
	if err != nil {
		return nil, fmt.Errorf("failed to clone base document: %w", err)
	}

	if override == nil {
		return result, nil
	}

	if override.Metadata.Description != "" {
		result.Metadata.Description = override.Metadata.Description
	}
	if len(override.Metadata.Tags) > 0 {
		result.Metadata.Tags = override.Metadata.Tags
	}

	if override.Strategy.Name != "" {
		result.Strategy.Name = override.Strategy.Name
	}
	if override.Strategy.Kind != "" {
		result.Strategy.Kind = override.Strategy.Kind
	}
	if override.Strategy.Status != "" {
		result.Strategy.Status = override.Strategy.Status
	}

	mergeParams(&result.Strategy.Params, &override.Strategy.Params)

	result.Metadata.UpdatedAt = time.Now()
	result.Metadata.Source = "merge"

	return result, nil
}

func mergeParams(base, override *arbmodel.StrategyParams) {
	if override.MinSpreadBps != nil {
		base.MinSpreadBps = override.MinSpreadBps
	}
	if override.RiskAversionLambda != nil {
		base.RiskAversionLambda = override.RiskAversionLambda
	}
	if override.MaxNotionalUsd != nil {
		base.MaxNotionalUsd = override.MaxNotionalUsd
	}
	if override.FlashEnabled != nil {
		base.FlashEnabled = override.FlashEnabled
	}
	if override.TotalFeesBps != nil {
		base.TotalFeesBps = override.TotalFeesBps
	}
	if override.EdgeDecayBpsSec != nil {
		base.EdgeDecayBpsSec = override.EdgeDecayBpsSec
	}
	if override.BaseFillProb != nil {
		base.BaseFillProb = override.BaseFillProb
	}
}
