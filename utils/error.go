package utils

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorKind is the stable taxonomy surfaced to the HTTP layer.
type ErrorKind string

const (
	ErrNotFound          ErrorKind = "NOT_FOUND"
	ErrInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	ErrInvalidState      ErrorKind = "INVALID_STATE"
	ErrInvalidInput      ErrorKind = "INVALID_INPUT"
	ErrConflict          ErrorKind = "CONFLICT"
	ErrTimeout           ErrorKind = "TIMEOUT"
	ErrUnavailable       ErrorKind = "UNAVAILABLE"
	ErrInternal          ErrorKind = "INTERNAL"
)

type AppError struct {
	Kind    ErrorKind
	Message string

	// Stock shortfall details, set for ErrInsufficientStock.
	ProductName  string
	Requested    decimal.Decimal
	Available    decimal.Decimal
	MaxOrderable int64
}

func (e *AppError) Error() string {
	return e.Message
}

func NewError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientStockError(productName string, requested, available decimal.Decimal, maxOrderable int64) *AppError {
	return &AppError{
		Kind:         ErrInsufficientStock,
		Message:      fmt.Sprintf("insufficient stock for %s: requested %s, available %s", productName, requested.String(), available.String()),
		ProductName:  productName,
		Requested:    requested,
		Available:    available,
		MaxOrderable: maxOrderable,
	}
}

// KindOf classifies any error; plain errors map to INTERNAL and
// ErrorRecordNotFound to NOT_FOUND so older call sites keep working.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, ErrorRecordNotFound) {
		return ErrNotFound
	}
	return ErrInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
