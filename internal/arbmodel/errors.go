// Package arbmodel defines the shared data model for the arbitrage signal
// and evaluation engine: pool/price snapshots, evaluation inputs/results,
// opportunities, signals, strategies, and the error taxonomy they share.
package arbmodel

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in the error handling design. Collaborator
// adapters and stream-level code wrap these with fmt.Errorf("...: %w", Err*)
// so callers can classify failures with errors.Is regardless of the wrapping
// message.
var (
	// ErrTransient marks a retryable I/O failure from a collaborator.
	ErrTransient = errors.New("transient")

	// ErrInputInvalid marks a malformed batch item; reported per-item,
	// never aborts the batch.
	ErrInputInvalid = errors.New("input invalid")

	// ErrPolicyDenied marks a strategy gate rejection. Not surfaced as an
	// error to callers of the coordinator; recorded as a non-executable
	// signal instead.
	ErrPolicyDenied = errors.New("policy denied")

	// ErrStaleData marks pool price data older than the freshness
	// threshold; the detector silently skips the comparison.
	ErrStaleData = errors.New("stale data")

	// ErrNumericalDegenerate marks zero liquidity, zero probability mass,
	// or zero capital; the evaluator returns a zeroed result instead of
	// propagating this.
	ErrNumericalDegenerate = errors.New("numerical degenerate")

	// ErrTimeout marks an external fetch that exceeded its bound; surfaces
	// as ErrTransient after retries are exhausted.
	ErrTimeout = errors.New("timeout")

	// ErrFatal marks an internal invariant violation. The current signal
	// is abandoned; the pipeline keeps running.
	ErrFatal = errors.New("fatal invariant violation")
)

// WrapTransient wraps err as a retryable Transient failure.
func WrapTransient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

// WrapTimeout wraps err as a Timeout failure.
func WrapTimeout(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
}

// WrapFatal wraps err as a Fatal invariant violation.
func WrapFatal(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrFatal, err)
}

// ItemError is a per-item error in a batch evaluation response. It preserves
// the original item's position so the caller can line up errors with inputs
// without the kernel aborting the rest of the batch.
type ItemError struct {
	Index   int    `json:"index"`
	Message string `json:"error"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Message)
}
