// Package gate implements the strategy lookup and approval-threshold
// checks that admit or deny execution for a detected opportunity.
package gate

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

// Reason codes returned by Lookup and CheckApproval.
const (
	ReasonOK                         = "ok"
	ReasonStrategyNotFound           = "strategy_not_found"
	ReasonStrategyNotApproved        = "strategy_not_approved"
	ReasonNoApprovedStrategy         = "no_approved_strategy"
	ReasonApproved                   = "approved"
	ReasonInsufficientCoverageHours  = "insufficient_coverage_hours"
	ReasonInsufficientPSuccess       = "insufficient_p_success"
	ReasonInsufficientEvAdj          = "insufficient_ev_adj_usd"
	ReasonExcessiveDrawdown          = "excessive_drawdown"
)

// StrategyStore is the read-only collaborator contract the gate consumes.
type StrategyStore interface {
	ListApproved(ctx context.Context, kind arbmodel.OpportunityKind) ([]arbmodel.Strategy, error)
	GetByID(ctx context.Context, id uuid.UUID) (arbmodel.Strategy, bool, error)
}

// Decision is the outcome of a strategy lookup for one opportunity.
type Decision struct {
	Allowed    bool
	ReasonCode string
	Params     arbmodel.StrategyParams
	StrategyID *uuid.UUID
}

// Lookup resolves the strategy governing kind. If preferredID is non-nil it
// must name an Approved strategy; otherwise the most recently updated
// Approved strategy matching kind is used.
func Lookup(ctx context.Context, store StrategyStore, kind arbmodel.OpportunityKind, preferredID *uuid.UUID) (Decision, error) {
	if preferredID != nil {
		strategy, ok, err := store.GetByID(ctx, *preferredID)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{Allowed: false, ReasonCode: ReasonStrategyNotFound}, nil
		}
		if strategy.Status != arbmodel.StrategyApproved {
			return Decision{Allowed: false, ReasonCode: ReasonStrategyNotApproved}, nil
		}
		id := strategy.ID
		return Decision{Allowed: true, ReasonCode: ReasonOK, Params: strategy.Params, StrategyID: &id}, nil
	}

	candidates, err := store.ListApproved(ctx, kind)
	if err != nil {
		return Decision{}, err
	}
	if len(candidates) == 0 {
		return Decision{Allowed: false, ReasonCode: ReasonNoApprovedStrategy}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
	})
	chosen := candidates[0]
	id := chosen.ID
	return Decision{Allowed: true, ReasonCode: ReasonOK, Params: chosen.Params, StrategyID: &id}, nil
}

// ApprovalThresholds are the configured minimum bars a strategy's approval
// metadata must clear to advance to Approved.
type ApprovalThresholds struct {
	MinCoverageHours float64
	MinPSuccess      float64
	MinEvAdjUsd      float64
	MaxDrawdown      float64
}

// CheckApproval reports whether meta clears th, and the first threshold
// missed otherwise. Checks run in the order coverage, p-success, EV, then
// drawdown, matching the spec's enumerated approval check.
func CheckApproval(meta arbmodel.ApprovalMetadata, th ApprovalThresholds) (bool, string) {
	if meta.CoverageHours < th.MinCoverageHours {
		return false, ReasonInsufficientCoverageHours
	}
	if meta.PSuccess < th.MinPSuccess {
		return false, ReasonInsufficientPSuccess
	}
	if meta.EvAdjUsd < th.MinEvAdjUsd {
		return false, ReasonInsufficientEvAdj
	}
	if meta.MaxDrawdown > th.MaxDrawdown {
		return false, ReasonExcessiveDrawdown
	}
	return true, ReasonApproved
}
