package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// CodeOf extracts the domain error code from err or any error it wraps.
// Non-domain errors yield the empty string.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given domain error code
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Stable error codes surfaced across the service boundary
const (
	CodeNotFound            = "PRODUCT_STOCK_NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInvalidQuantity     = "INVALID_QUANTITY"
	CodeInsufficientStock   = "INSUFFICIENT_STOCK"
	CodeInvariantViolation  = "INVARIANT_VIOLATION"
	CodeConcurrencyConflict = "OPTIMISTIC_LOCK_FAILED"
	CodeInvalidState        = "INVALID_STATE"
	CodeTimeout             = "TIMEOUT"
	CodeRepositoryError     = "REPOSITORY_ERROR"
	CodeEventBusError       = "EVENT_BUS_ERROR"
	CodeSchemaValidation    = "SCHEMA_VALIDATION_FAILED"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Product stock not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock   = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrTimeout             = NewDomainError(CodeTimeout, "Operation deadline exceeded")
)
