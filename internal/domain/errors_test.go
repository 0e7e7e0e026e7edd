package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsVersionConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "version conflict error",
			err:  ErrVersionConflict,
			want: true,
		},
		{
			name: "wrapped version conflict error",
			err:  errors.Join(ErrVersionConflict, errors.New("additional context")),
			want: true,
		},
		{
			name: "other error",
			err:  ErrOrderNotFound,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsVersionConflict(tt.err)
			if got != tt.want {
				t.Errorf("IsVersionConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	for _, err := range []error{ErrOrderNotFound, ErrCartNotFound, ErrReturnNotFound, fmt.Errorf("get: %w", ErrInvoiceNotFound)} {
		if !IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false", err)
		}
	}
	if IsNotFound(ErrStorageFailure) {
		t.Error("storage failure is not a not-found error")
	}
}

func TestValidationError(t *testing.T) {
	if NewValidationError(nil) != nil {
		t.Fatal("empty violations must produce nil error")
	}

	transition := &TransitionError{Entity: EntityOrder, From: "pending", To: "delivered"}
	err := NewValidationError([]error{ErrItemsRequired, ItemViolation(1, ErrItemQtyInvalid), transition})

	if !errors.Is(err, ErrValidationFailed) {
		t.Fatal("expected ErrValidationFailed")
	}
	if !errors.Is(err, ErrItemQtyInvalid) || !errors.Is(err, ErrItemsRequired) {
		t.Fatal("expected every violation to be reachable through errors.Is")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("expected nested transition error")
	}
	if len(Violations(err)) != 3 {
		t.Fatalf("expected 3 violations, got %d", len(Violations(err)))
	}
	want := "validation failed: at least one item is required; items[1]: item quantity must be greater than zero; invalid status transition: order pending -> delivered"
	if err.Error() != want {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
