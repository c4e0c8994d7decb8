package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed operation so callers (and the HTTP layer)
// can act on it. Only Conflict is safe to retry automatically.
type ErrorKind string

const (
	ErrorKindValidation        ErrorKind = "VALIDATION"
	ErrorKindState             ErrorKind = "STATE"
	ErrorKindInvariant         ErrorKind = "INVARIANT"
	ErrorKindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	ErrorKindCapacityExceeded  ErrorKind = "CAPACITY_EXCEEDED"
	ErrorKindConflict          ErrorKind = "CONFLICT"
	ErrorKindNotFound          ErrorKind = "NOT_FOUND"
)

// DomainError carries the failure kind plus enough key/quantity context for the
// caller to act. Quantities are pre-rendered strings so this package does not
// depend on the decimal type.
type DomainError struct {
	Kind        ErrorKind
	Message     string
	WarehouseId int
	VariantId   int
	StockStatus string
	Requested   string
	Available   string
}

func (e *DomainError) Error() string {
	if e.WarehouseId > 0 || e.VariantId > 0 {
		return fmt.Sprintf("%s (warehouse=%d variant=%d status=%s)", e.Message, e.WarehouseId, e.VariantId, e.StockStatus)
	}
	return e.Message
}

// Is lets errors.Is match any two domain errors of the same kind, so sentinel
// values like ErrorRecordNotFound work as comparison targets.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Kind == de.Kind
	}
	return false
}

var ErrorRecordNotFound = &DomainError{Kind: ErrorKindNotFound, Message: "record not found"}

func NewValidationError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewStateError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindState, Message: fmt.Sprintf(format, args...)}
}

func NewInvariantError(warehouseId, variantId int, stockStatus string, format string, args ...interface{}) *DomainError {
	return &DomainError{
		Kind:        ErrorKindInvariant,
		Message:     fmt.Sprintf(format, args...),
		WarehouseId: warehouseId,
		VariantId:   variantId,
		StockStatus: stockStatus,
	}
}

func NewInsufficientStockError(warehouseId, variantId int, stockStatus string, requested, available string) *DomainError {
	return &DomainError{
		Kind:        ErrorKindInsufficientStock,
		Message:     fmt.Sprintf("requested %s exceeds available %s", requested, available),
		WarehouseId: warehouseId,
		VariantId:   variantId,
		StockStatus: stockStatus,
		Requested:   requested,
		Available:   available,
	}
}

func NewCapacityExceededError(vehicleId int, requested, available string) *DomainError {
	return &DomainError{
		Kind:      ErrorKindCapacityExceeded,
		Message:   fmt.Sprintf("vehicle %d load of %s exceeds remaining capacity %s", vehicleId, requested, available),
		Requested: requested,
		Available: available,
	}
}

func NewConflictError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: ErrorKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the error's kind, or "" for non-domain errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsConflict reports whether the caller should retry the operation.
func IsConflict(err error) bool {
	return KindOf(err) == ErrorKindConflict
}

// HTTPStatus maps an error to the response status for the REST layer.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrorKindValidation:
		return http.StatusBadRequest
	case ErrorKindState:
		return http.StatusConflict
	case ErrorKindInvariant:
		return http.StatusUnprocessableEntity
	case ErrorKindInsufficientStock:
		return http.StatusUnprocessableEntity
	case ErrorKindCapacityExceeded:
		return http.StatusUnprocessableEntity
	case ErrorKindConflict:
		return http.StatusConflict
	case ErrorKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
