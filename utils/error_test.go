package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad input"), http.StatusBadRequest},
		{NewStateError("illegal transition"), http.StatusConflict},
		{NewInvariantError(1, 2, "on_hand", "negative quantity"), http.StatusUnprocessableEntity},
		{NewInsufficientStockError(1, 2, "on_hand", "80", "70"), http.StatusUnprocessableEntity},
		{NewCapacityExceededError(3, "500", "200"), http.StatusUnprocessableEntity},
		{NewConflictError("retry"), http.StatusConflict},
		{NewNotFoundError("no such warehouse"), http.StatusNotFound},
		{ErrorRecordNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d; want %d", c.err, got, c.want)
		}
	}
}

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := NewNotFoundError("variant %d not found", 9)
	if !errors.Is(err, ErrorRecordNotFound) {
		t.Error("not-found errors should match the sentinel")
	}
	if errors.Is(NewValidationError("x"), ErrorRecordNotFound) {
		t.Error("validation errors must not match the not-found sentinel")
	}

	// Wrapping keeps the kind reachable.
	wrapped := fmt.Errorf("loading document: %w", err)
	if !errors.Is(wrapped, ErrorRecordNotFound) {
		t.Error("wrapped domain errors should still match by kind")
	}
	if KindOf(wrapped) != ErrorKindNotFound {
		t.Errorf("KindOf(wrapped) = %q", KindOf(wrapped))
	}
}

func TestInsufficientStockErrorContext(t *testing.T) {
	err := NewInsufficientStockError(4, 7, "on_hand", "80", "70")
	if err.WarehouseId != 4 || err.VariantId != 7 || err.StockStatus != "on_hand" {
		t.Error("error should carry the ledger key")
	}
	if err.Requested != "80" || err.Available != "70" {
		t.Error("error should carry the quantities")
	}
	msg := err.Error()
	if msg == "" || msg == err.Message {
		t.Errorf("message should include the ledger key context; got %q", msg)
	}
}

func TestIsConflict(t *testing.T) {
	if !IsConflict(NewConflictError("another count in progress")) {
		t.Error("conflict errors should report retryable")
	}
	if IsConflict(NewStateError("cannot post twice")) {
		t.Error("state errors are terminal, not retryable")
	}
}
