package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUser         = errors.New("invalid user")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrFutureTimestamp     = errors.New("timestamp is in the future")
)

// StoreError wraps a location log failure. It matches both
// ErrStoreUnavailable and the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrStoreUnavailable, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// LocationError reports why a position sample could not be taken
// (permission denied, unsupported, timeout).
type LocationError struct {
	Reason string
	Err    error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrLocationUnavailable, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrLocationUnavailable, e.Reason)
}

func (e *LocationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLocationUnavailable, e.Err}
	}
	return []error{ErrLocationUnavailable}
}

// ErrPrecisionMismatch is returned when a cell of the wrong length is used
// against an index built at a fixed precision.
var ErrPrecisionMismatch = errors.New("geohash precision mismatch")

// ErrTooManyCells is returned when a batch density query exceeds the limit.
var ErrTooManyCells = errors.New("too many cells")
