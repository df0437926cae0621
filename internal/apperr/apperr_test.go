package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("link", "abc"), KindNotFound},
		{"wrapped not found", fmt.Errorf("record: %w", NotFound("user", "u1")), KindNotFound},
		{"invalid", InvalidArgument("period", "unsupported"), KindInvalidArgument},
		{"store", Store("click", "", errors.New("conn reset")), KindStore},
		{"upstream", Upstream("geolocation", errors.New("timeout")), KindUpstreamUnavailable},
		{"inconsistent", Inconsistent("%d != %d", 1, 2), KindDataInconsistency},
		{"plain", errors.New("boom"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorsIsSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("lookup: %w", NotFound("link", "abc"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected wrapped NotFound to match ErrNotFound")
	}
	if errors.Is(err, ErrStore) {
		t.Fatal("NotFound must not match ErrStore")
	}
}

func TestStoreUnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Store("link", "l1", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected store error to unwrap to its cause")
	}
	if got := err.Error(); got != "store link l1: connection refused" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	if KindNotFound.String() != "NOT_FOUND" {
		t.Errorf("unexpected code %q", KindNotFound.String())
	}
	if KindUnknown.String() != "INTERNAL_ERROR" {
		t.Errorf("unexpected code %q", KindUnknown.String())
	}
}
