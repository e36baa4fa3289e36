package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrMissingField, "field %s", "email")
	if !errors.Is(err, ErrMissingField) {
		t.Fatal("expected wrapped error to match ErrMissingField")
	}
	if err.Error() != "missing required field: field email" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", ErrInvalidRole, KindValidation},
		{"wrapped not found", fmt.Errorf("get appointment: %w", ErrNotFound), KindNotFound},
		{"duplicate email", ErrDuplicateEmail, KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"unauthenticated", Wrap(ErrUnauthenticated, "missing token"), KindUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		KindValidation:      http.StatusBadRequest,
		KindUnauthenticated: http.StatusUnauthorized,
		KindForbidden:       http.StatusForbidden,
		KindNotFound:        http.StatusNotFound,
		KindConflict:        http.StatusConflict,
		KindInternal:        http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := kind.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestIs(t *testing.T) {
	if Is(nil, KindInternal) {
		t.Error("nil error should not match any kind")
	}
	if !Is(ErrForbidden, KindForbidden) {
		t.Error("expected ErrForbidden to be KindForbidden")
	}
}
