// Package common defines shared constants, sentinel errors and the typed error
// taxonomy used across the reconciliation engine. Callers should use errors.Is
// and errors.As to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrTokenRevoked        = errors.New("token revoked")

	// Taxonomy sentinels, matched by the typed errors below.
	ErrValidation = errors.New("validation error")
	ErrPermission = errors.New("permission denied")
	ErrConflict   = errors.New("conflict")
	ErrProvider   = errors.New("provider error")

	// Identity reconciliation outcomes that must not be conflated.
	ErrNoExternalIdentity = errors.New("no external identity")
	ErrClaimsMissing      = errors.New("claims missing")

	// Guards.
	ErrConfirmationRequired = errors.New("explicit confirmation required")
	ErrSameCategory         = errors.New("target category equals source category")
	ErrCategoryInUse        = errors.New("category is still referenced")
)

// ValidationError describes a row- or field-level input problem. Row is the
// 1-based position in the source file (0 when not row-scoped).
type ValidationError struct {
	Row     int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Row > 0 && e.Field != "":
		return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Message)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError.
func NewValidationError(row int, field, message string) *ValidationError {
	return &ValidationError{Row: row, Field: field, Message: message}
}

// PermissionError is returned when the actor role may not perform an action.
type PermissionError struct {
	Role   string
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Action)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrorNotFound }

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports an immutable-field mismatch or a duplicate key.
type ConflictError struct {
	Resource string
	Key      string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.Key, e.Message)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NewConflictError creates a ConflictError.
func NewConflictError(resource, key, message string) *ConflictError {
	return &ConflictError{Resource: resource, Key: key, Message: message}
}

// ProviderKind separates failures that abort the enclosing operation from
// mirrored writes whose failure is only reported.
type ProviderKind string

const (
	// Authoritative failures come from the document store and abort the row or operation.
	Authoritative ProviderKind = "authoritative"
	// BestEffort failures come from identity-provider mirroring and are logged.
	BestEffort ProviderKind = "best_effort"
)

// ProviderError wraps a failure of one of the external stores.
type ProviderError struct {
	Kind ProviderKind
	Op   string
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// NewAuthoritativeError wraps err as an authoritative ProviderError.
func NewAuthoritativeError(op string, err error) *ProviderError {
	return &ProviderError{Kind: Authoritative, Op: op, Err: err}
}

// NewBestEffortError wraps err as a best-effort ProviderError.
func NewBestEffortError(op string, err error) *ProviderError {
	return &ProviderError{Kind: BestEffort, Op: op, Err: err}
}

// IsBestEffort reports whether err carries a best-effort ProviderError.
func IsBestEffort(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == BestEffort
}
