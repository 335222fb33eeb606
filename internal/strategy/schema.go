package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// ValidationError contains details about a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ErrInvalidSchema is returned when the document's schema version is not supported.
var ErrInvalidSchema = errors.New("invalid or unsupported schema version")

// ErrMissingRequiredField is returned when a required field is missing.
var ErrMissingRequiredField = errors.New("missing required field")

// SupportedSchemaVersions lists all supported document schema versions.
var SupportedSchemaVersions = []string{"1.0"}

var validKinds = map[arbmodel.OpportunityKind]bool{
	arbmodel.OpportunityDirect:     true,
	arbmodel.OpportunityCrossVenue: true,
	arbmodel.OpportunityTriangular: true,
}

var validStatuses = map[arbmodel.StrategyStatus]bool{
	arbmodel.StrategyDraft:       true,
	arbmodel.StrategyBacktesting: true,
	arbmodel.StrategyApproved:    true,
	arbmodel.StrategyRejected:    true,
	arbmodel.StrategyArchived:    true,
}

// Validate performs comprehensive validation on a document. Returns nil if
// valid, or ValidationErrors with every issue found.
func (d *Document) Validate() error {
	var errs ValidationErrors

	errs = append(errs, d.validateMetadata()...)
	errs = append(errs, d.validateStrategy()...)
	errs = append(errs, d.validateParams()...)
	errs = append(errs, d.validateApproval()...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (d *Document) validateMetadata() ValidationErrors {
	var errs ValidationErrors

	if d.Metadata.SchemaVersion == "" {
		errs = append(errs, ValidationError{Field: "metadata.schema_version", Message: "schema version is required"})
	} else if !isVersionSupported(d.Metadata.SchemaVersion) {
		errs = append(errs, ValidationError{
			Field:   "metadata.schema_version",
			Message: fmt.Sprintf("unsupported schema version %s, supported: %v", d.Metadata.SchemaVersion, SupportedSchemaVersions),
		})
	}

	if len(d.Metadata.Description) > 2000 {
		errs = append(errs, ValidationError{Field: "metadata.description", Message: "description must be 2000 characters or less"})
	}

	if len(d.Metadata.Tags) > 20 {
		errs = append(errs, ValidationError{Field: "metadata.tags", Message: "maximum 20 tags allowed"})
	}
	for i, tag := range d.Metadata.Tags {
		if len(tag) > 50 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("metadata.tags[%d]", i), Message: "tag must be 50 characters or less"})
		}
	}

	return errs
}

func (d *Document) validateStrategy() ValidationErrors {
	var errs ValidationErrors

	if d.Strategy.Name == "" {
		errs = append(errs, ValidationError{Field: "strategy.name", Message: "strategy name is required"})
	} else if len(d.Strategy.Name) > 100 {
		errs = append(errs, ValidationError{Field: "strategy.name", Message: "strategy name must be 100 characters or less"})
	}

	if d.Strategy.Kind == "" {
		errs = append(errs, ValidationError{Field: "strategy.kind", Message: "strategy kind is required"})
	} else if !validKinds[d.Strategy.Kind] {
		errs = append(errs, ValidationError{Field: "strategy.kind", Message: fmt.Sprintf("unknown opportunity kind %q", d.Strategy.Kind)})
	}

	if d.Strategy.Status == "" {
		errs = append(errs, ValidationError{Field: "strategy.status", Message: "strategy status is required"})
	} else if !validStatuses[d.Strategy.Status] {
		errs = append(errs, ValidationError{Field: "strategy.status", Message: fmt.Sprintf("unknown status %q", d.Strategy.Status)})
	}

	return errs
}

// validateParams checks that any StrategyParams field the document sets is
// within range. Unset (nil) fields leave the gate's default in place and
// are never an error here.
func (d *Document) validateParams() ValidationErrors {
	var errs ValidationErrors
	p := d.Strategy.Params

	if p.MinSpreadBps != nil && *p.MinSpreadBps < 0 {
		errs = append(errs, ValidationError{Field: "strategy.params.min_spread_bps", Message: "must be non-negative"})
	}
	if p.RiskAversionLambda != nil && *p.RiskAversionLambda < 0 {
		errs = append(errs, ValidationError{Field: "strategy.params.risk_aversion_lambda", Message: "must be non-negative"})
	}
	if p.MaxNotionalUsd != nil && *p.MaxNotionalUsd <= 0 {
		errs = append(errs, ValidationError{Field: "strategy.params.max_notional_usd", Message: "must be greater than 0"})
	}
	if p.TotalFeesBps != nil && *p.TotalFeesBps < 0 {
		errs = append(errs, ValidationError{Field: "strategy.params.total_fees_bps", Message: "must be non-negative"})
	}
	if p.EdgeDecayBpsSec != nil && *p.EdgeDecayBpsSec < 0 {
		errs = append(errs, ValidationError{Field: "strategy.params.edge_decay_bps_sec", Message: "must be non-negative"})
	}
	if p.BaseFillProb != nil && (*p.BaseFillProb < 0 || *p.BaseFillProb > 1) {
		errs = append(errs, ValidationError{Field: "strategy.params.base_fill_prob", Message: "must be between 0 and 1"})
	}

	return errs
}

func (d *Document) validateApproval() ValidationErrors {
	var errs ValidationErrors
	a := d.Strategy.Approval

	if a.CoverageHours < 0 {
		errs = append(errs, ValidationError{Field: "strategy.approval.coverage_hours", Message: "must be non-negative"})
	}
	if a.PSuccess < 0 || a.PSuccess > 1 {
		errs = append(errs, ValidationError{Field: "strategy.approval.p_success", Message: "must be between 0 and 1"})
	}
	if a.MaxDrawdown < 0 || a.MaxDrawdown > 1 {
		errs = append(errs, ValidationError{Field: "strategy.approval.max_drawdown", Message: "must be between 0 and 1"})
	}

	return errs
}

func isVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}
	return false
}

// ValidateQuick performs minimal validation for quick checks: schema
// version and strategy name only.
func (d *Document) ValidateQuick() error {
	if d.Metadata.SchemaVersion == "" {
		return fmt.Errorf("%w: metadata.schema_version", ErrMissingRequiredField)
	}
	if !isVersionSupported(d.Metadata.SchemaVersion) {
		return ErrInvalidSchema
	}
	if d.Strategy.Name == "" {
		return fmt.Errorf("%w: strategy.name", ErrMissingRequiredField)
	}
	return nil
}
