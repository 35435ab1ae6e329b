package helpers

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

// ReplayError is the base error for the playback core. None of these are
// fatal to the process; every failure degrades to stale or fallback data.
type ReplayError struct {
	Message string
	Cause   error
}

func (e *ReplayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ReplayError) Unwrap() error {
	return e.Cause
}

// Distinct error types for type assertions where callers care which leg failed.
type LookupError struct{ ReplayError }            // timestep <-> time conversion failed
type RangeValidationError struct{ ReplayError }   // resolved end precedes resolved start
type ClusterGenerationError struct{ ReplayError } // clustering call failed, prior assignment retained
type FetchTimeoutError struct{ ReplayError }      // coordinate fetch exceeded its deadline

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewLookupError(msg string, cause error) *LookupError {
	return &LookupError{ReplayError{Message: msg, Cause: cause}}
}

func NewRangeValidationError(msg string) *RangeValidationError {
	return &RangeValidationError{ReplayError{Message: msg}}
}

func NewClusterGenerationError(msg string, cause error) *ClusterGenerationError {
	return &ClusterGenerationError{ReplayError{Message: msg, Cause: cause}}
}

func NewFetchTimeoutError(msg string, cause error) *FetchTimeoutError {
	return &FetchTimeoutError{ReplayError{Message: msg, Cause: cause}}
}
