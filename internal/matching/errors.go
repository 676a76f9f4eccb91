package matching

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	// ErrNoIdentifier is returned for competitor records with neither SKU nor model.
	ErrNoIdentifier = eris.New("competitor has no sku or model")
	// ErrPriceOutOfBounds is returned when a competitor price is not a sane amount.
	ErrPriceOutOfBounds = eris.New("competitor price out of bounds")
	// ErrUnknownProfile is returned by ProfileOptions for unrecognized names.
	ErrUnknownProfile = eris.New("unknown matching profile")
)

// InputValidationError rejects a competitor record before any strategy runs.
type InputValidationError struct {
	SKU    string
	Reason error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("matching: invalid input (sku %q): %v", e.SKU, e.Reason)
}

func (e *InputValidationError) Unwrap() error { return e.Reason }

// OptionsError rejects malformed matching options.
type OptionsError struct {
	Err error
}

func (e *OptionsError) Error() string {
	return "matching: invalid options: " + e.Err.Error()
}

func (e *OptionsError) Unwrap() error { return e.Err }

// StrategyError records a failed (or panicking) strategy. It is logged and
// counted, never returned from Match.
type StrategyError struct {
	Strategy string
	SKU      string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("matching: strategy %s failed for sku %q: %v", e.Strategy, e.SKU, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// FusionInconsistencyError flags a candidate whose target is not in the
// supplied catalog. The candidate is dropped with a warning.
type FusionInconsistencyError struct {
	TargetSKU string
	Strategy  string
}

func (e *FusionInconsistencyError) Error() string {
	return fmt.Sprintf("matching: candidate from %s references unknown target sku %q", e.Strategy, e.TargetSKU)
}
