// Package strategy provides import/export and versioning for strategy
// configurations. It lets an operator hand-author a Strategy as YAML or
// JSON, push it through validation and schema migration, and get back the
// arbmodel.Strategy record the gate and coordinator consume.
package strategy

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/metrics"
)

// SchemaVersion is the current document schema version.
const SchemaVersion = "1.0"

// DocumentMetadata describes the document, as distinct from the strategy
// record it carries. It never round-trips through the strategy store;
// it exists only in the YAML/JSON file.
type DocumentMetadata struct {
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Author        string    `yaml:"author,omitempty" json:"author,omitempty"`
	Tags          []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedAt     time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	// Source records how this document came to be: "export", "import",
	// "clone", "merge", or "default".
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Document is the exportable, file-shaped wrapper around an
// arbmodel.Strategy. The strategy store persists arbmodel.Strategy
// directly; Document is only used at the edges, when a strategy is
// written to or read from a file.
type Document struct {
	Metadata DocumentMetadata  `yaml:"metadata" json:"metadata"`
	Strategy arbmodel.Strategy `yaml:"strategy" json:"strategy"`
}

func f64(v float64) *float64 { return &v }
func bptr(v bool) *bool      { return &v }

// NewDefaultDocument returns a Document with conservative default
// StrategyParams for the given opportunity kind, in draft status.
func NewDefaultDocument(kind arbmodel.OpportunityKind, name string) *Document {
	now := time.Now()
	return &Document{
		Metadata: DocumentMetadata{
			SchemaVersion: SchemaVersion,
			CreatedAt:     now,
			UpdatedAt:     now,
			Source:        "default",
		},
		Strategy: arbmodel.Strategy{
			ID:     uuid.New(),
			Kind:   kind,
			Name:   name,
			Status: arbmodel.StrategyDraft,
			Params: defaultParamsForKind(kind),
		},
	}
}

// defaultParamsForKind returns conservative StrategyParams defaults, varied
// slightly by kind: triangular paths carry more hops and thus more fee and
// latency drag than a direct two-leg trade, so its floor sits higher.
func defaultParamsForKind(kind arbmodel.OpportunityKind) arbmodel.StrategyParams {
	switch kind {
	case arbmodel.OpportunityTriangular:
		return arbmodel.StrategyParams{
			MinSpreadBps:       f64(15),
			RiskAversionLambda: f64(1.5),
			MaxNotionalUsd:     f64(25000),
			FlashEnabled:       bptr(true),
			TotalFeesBps:       f64(9),
			EdgeDecayBpsSec:    f64(2.0),
			BaseFillProb:       f64(0.85),
		}
	case arbmodel.OpportunityCrossVenue:
		return arbmodel.StrategyParams{
			MinSpreadBps:       f64(10),
			RiskAversionLambda: f64(1.0),
			MaxNotionalUsd:     f64(50000),
			FlashEnabled:       bptr(false),
			TotalFeesBps:       f64(6),
			EdgeDecayBpsSec:    f64(1.2),
			BaseFillProb:       f64(0.9),
		}
	default: // direct
		return arbmodel.StrategyParams{
			MinSpreadBps:       f64(8),
			RiskAversionLambda: f64(0.8),
			MaxNotionalUsd:     f64(75000),
			FlashEnabled:       bptr(true),
			TotalFeesBps:       f64(5),
			EdgeDecayBpsSec:    f64(0.8),
			BaseFillProb:       f64(0.93),
		}
	}
}

// DeepCopy returns an independent copy of the document, including its
// embedded Strategy, by round-tripping through JSON. A marshal/unmarshal
// error here means the document contains something JSON cannot represent,
// which should never happen for this struct shape; callers get a nil back
// and the failure is logged and counted.
func (d *Document) DeepCopy() *Document {
	if d == nil {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		log.Error().Err(err).Str("strategy_name", d.Strategy.Name).Msg("DeepCopy: failed to marshal document")
		metrics.RecordError("deepcopy_marshal_error", "strategy")
		return nil
	}
	var copied Document
	if err := json.Unmarshal(data, &copied); err != nil {
		log.Error().Err(err).Str("strategy_name", d.Strategy.Name).Msg("DeepCopy: failed to unmarshal document")
		metrics.RecordError("deepcopy_unmarshal_error", "strategy")
		return nil
	}
	return &copied
}
