package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the reversible engine.
var (
	// ErrInvalidState indicates a position or velocity with NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidConfig indicates a malformed system description.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrUnknownPrecision indicates a precision name other than single or double.
	ErrUnknownPrecision = errors.New("dynamo: unknown precision")

	// ErrUnknownTerm indicates an energy term kind with no implementation.
	ErrUnknownTerm = errors.New("dynamo: unknown energy term")

	// ErrDuplicateExclusion indicates the same atom pair excluded twice.
	ErrDuplicateExclusion = errors.New("dynamo: duplicate exclusion")

	// ErrNonPositiveParam indicates a parameter that must be strictly positive.
	ErrNonPositiveParam = errors.New("dynamo: parameter must be positive")

	// ErrSingularGeometry indicates coincident atoms in the initial coordinates.
	ErrSingularGeometry = errors.New("dynamo: coincident atoms")

	// ErrSingularCoefficient indicates a zero velocity retention coefficient.
	ErrSingularCoefficient = errors.New("dynamo: velocity coefficient is zero")

	// ErrDimensionMismatch indicates mismatched array shapes.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSessionNotFound indicates a backward request for a key with no live session.
	ErrSessionNotFound = errors.New("dynamo: session not found")

	// ErrNotIntegrated indicates a backward pass before any forward pass.
	ErrNotIntegrated = errors.New("dynamo: no completed forward pass")
)

var configErrors = []error{
	ErrInvalidConfig,
	ErrUnknownPrecision,
	ErrUnknownTerm,
	ErrDuplicateExclusion,
	ErrNonPositiveParam,
	ErrSingularGeometry,
	ErrSingularCoefficient,
	ErrDimensionMismatch,
}

// IsConfigError reports whether err was caused by caller input rather
// than by the engine.
func IsConfigError(err error) bool {
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Configf wraps ErrInvalidConfig with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// StepError wraps an error with the step and phase it occurred in.
type StepError struct {
	Step    int
	Phase   string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d: %v", e.Phase, e.Step, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
