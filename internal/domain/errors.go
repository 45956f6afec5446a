package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
// Implementing this interface enables extensible error handling (OCP compliance).
type HTTPError interface {
	error
	StatusCode() int
}

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrInvariant    = errors.New("invariant violation")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrDependency   = errors.New("dependency unavailable, try again")

	// ErrReconciliationRequired marks a metadata commit that failed after the
	// blob store had already been mutated. The two stores disagree until an
	// out-of-band sweep repairs them.
	ErrReconciliationRequired = errors.New("metadata and blob store out of sync, reconciliation required")
)

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		ResourceType string
		ResourceID   string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// InvariantError indicates the request would break a structural invariant
	// of the folder tree or the file lifecycle
	InvariantError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates authorization failure
	ForbiddenError struct {
		Message string
	}

	// DependencyError indicates an external collaborator (blob store) failed.
	// Callers may retry.
	DependencyError struct {
		Dependency string
		Operation  string
		Err        error
	}
)

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (folder, file, version)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implementations
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.ResourceType, e.ResourceID, ErrNotFound)
}
func (e *ValidationError) Error() string   { return ErrValidation.Error() + ": " + e.Message }
func (e *InvariantError) Error() string    { return ErrInvariant.Error() + ": " + e.Message }
func (e *UnauthorizedError) Error() string { return ErrUnauthorized.Error() + ": " + e.Message }
func (e *ForbiddenError) Error() string    { return ErrForbidden.Error() + ": " + e.Message }
func (e *ConflictError) Error() string     { return ErrConflict.Error() + ": " + e.Message }
func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrDependency, e.Dependency, e.Operation, e.Err)
}

// Is implementations so errors.Is() matches the sentinel of each kind
func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *InvariantError) Is(target error) bool    { return target == ErrInvariant }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }
func (e *ConflictError) Is(target error) bool     { return target == ErrConflict }
func (e *DependencyError) Is(target error) bool   { return target == ErrDependency }

func (e *DependencyError) Unwrap() error { return e.Err }

// StatusCode implementations (HTTPError interface)
func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *InvariantError) StatusCode() int    { return http.StatusUnprocessableEntity }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }
func (e *ConflictError) StatusCode() int     { return http.StatusConflict }
func (e *DependencyError) StatusCode() int   { return http.StatusServiceUnavailable }

// NewValidationError builds a ValidationError from a format string
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NewInvariantError builds an InvariantError from a format string
func NewInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{Message: fmt.Sprintf(format, args...)}
}

// IsRetryable reports whether the caller may retry the operation unchanged.
// Only blob-store failures qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDependency)
}
