package models

import "errors"

// Domain error taxonomy. Callers match with errors.Is; every layer wraps with %w.
var (
	// ErrNotFound means the provider has no records for the ticker/range.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientData means the history is too short to build features or fit.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidParameter means the request was rejected before any computation.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrNumericDegeneracy means a computation produced a non-finite value.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
)
