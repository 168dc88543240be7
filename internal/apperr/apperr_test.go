package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Conflict("chore already completed")
	wrapped := fmt.Errorf("complete chore: %w", base)

	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("KindOf = %v, want %v", got, KindConflict)
	}
	if !Is(wrapped, KindConflict) {
		t.Error("expected Is(conflict) to be true")
	}
	if Is(nil, KindConflict) {
		t.Error("nil error should not carry a kind")
	}
}

func TestKindOfUntyped(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Errorf("KindOf = %v, want internal", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{Unavailable("settings store", errors.New("database is locked")), true},
		{RateLimited("slow down"), true},
		{NotFound("chore not found"), false},
		{Validation("bad input", nil), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := Unavailable("load settings", errors.New("disk I/O error"))
	if got := err.Error(); got != "load settings: disk I/O error" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}

func TestCode(t *testing.T) {
	if got := KindRateLimited.Code(); got != "rate_limit_exceeded" {
		t.Errorf("Code = %q", got)
	}
	if got := Kind(99).Code(); got != "internal_error" {
		t.Errorf("unknown kind code = %q", got)
	}
}
