// Package errors provides the domain error types of the health log.
package errors

import (
	"fmt"
	"net/http"
)

// DomainError is the base interface for all health log errors.
type DomainError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the base implementation of DomainError.
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// NotFoundError signals that a referenced entity does not exist.
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// ValidationError signals rejected input: an empty required field, a
// missing page request, or a malformed query operator.
type ValidationError struct {
	BaseError
	Field string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Field: field,
	}
}

// DuplicateNameError signals a uniqueness violation on a field name.
type DuplicateNameError struct {
	BaseError
	Name string
}

func NewDuplicateNameError(name string) *DuplicateNameError {
	return &DuplicateNameError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("field name already exists: %s", name),
			StatusCode: http.StatusConflict,
			ErrorCode:  "DUPLICATE_NAME",
		},
		Name: name,
	}
}

// TypeMismatchError signals a report requested against a field whose
// declared data type does not match the report family.
type TypeMismatchError struct {
	BaseError
	FieldName string
	Expected  string
	Actual    string
}

func NewTypeMismatchError(fieldName, expected, actual string) *TypeMismatchError {
	return &TypeMismatchError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("field %s is %s, not %s", fieldName, actual, expected),
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "TYPE_MISMATCH",
		},
		FieldName: fieldName,
		Expected:  expected,
		Actual:    actual,
	}
}

// ConflictError surfaces a storage-layer constraint violation, e.g. two
// concurrent saves racing on the same (user, date). The caller resubmits.
type ConflictError struct {
	BaseError
	Resource string
}

func NewConflictError(resource string) *ConflictError {
	return &ConflictError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s already exists", resource),
			StatusCode: http.StatusConflict,
			ErrorCode:  "CONFLICT",
		},
		Resource: resource,
	}
}

// UnauthorizedError represents an authentication failure.
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// PermissionDeniedError represents a missing role.
type PermissionDeniedError struct {
	BaseError
}

func NewPermissionDeniedError() *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission denied",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
	}
}

// InternalError wraps an unexpected failure.
type InternalError struct {
	BaseError
	OriginalError error
}

func NewInternalError(original error) *InternalError {
	return &InternalError{
		BaseError: BaseError{
			Message:    "internal server error",
			StatusCode: http.StatusInternalServerError,
			ErrorCode:  "INTERNAL_ERROR",
		},
		OriginalError: original,
	}
}

func (e *InternalError) Unwrap() error {
	return e.OriginalError
}

// ToHTTPError converts any error to an HTTP status and response body.
func ToHTTPError(err error) (int, map[string]interface{}) {
	if err == nil {
		return http.StatusOK, nil
	}

	if de, ok := err.(DomainError); ok {
		return de.HTTPStatus(), map[string]interface{}{
			"error":   de.Code(),
			"message": de.Error(),
		}
	}

	return http.StatusInternalServerError, map[string]interface{}{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
