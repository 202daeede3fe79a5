package domain

import (
	"errors"
	"testing"
)

func TestStoreError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &StoreError{Op: "append ping", Err: cause}

	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("expected errors.Is to match ErrStoreUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the cause")
	}
	if got := err.Error(); got != "append ping: store unavailable: connection refused" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestLocationError(t *testing.T) {
	err := &LocationError{Reason: "permission denied"}
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Error("expected errors.Is to match ErrLocationUnavailable")
	}
	if got := err.Error(); got != "location unavailable: permission denied" {
		t.Errorf("unexpected message %q", got)
	}

	timeout := errors.New("timeout")
	wrapped := &LocationError{Reason: "gps", Err: timeout}
	if !errors.Is(wrapped, timeout) {
		t.Error("expected errors.Is to match the cause")
	}
}
