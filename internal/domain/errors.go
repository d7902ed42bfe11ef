package domain

import (
	"errors"
	"fmt"

	"github.com/workbench/internal/identity"
)

// ============================================================================
// Domain Error Types
// ============================================================================

// DomainError represents a locally raised error with a code and message
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches domain errors by code so wrapped copies compare equal to the
// sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrorCode implements identity.Coder.
func (e *DomainError) ErrorCode() string {
	return e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ============================================================================
// Common Domain Errors
// ============================================================================

var (
	// ErrNotAuthenticated is raised when an operation needs a cached user
	// and there is none.
	ErrNotAuthenticated = &DomainError{
		Code:    "NOT_AUTHENTICATED",
		Message: "Not authenticated",
	}

	ErrInvalidRequest = &DomainError{
		Code:    "INVALID_REQUEST",
		Message: "invalid request",
	}

	ErrFileSystem = &DomainError{
		Code:    "FILESYSTEM_ERROR",
		Message: "filesystem operation failed",
	}

	ErrPageNotFound = &DomainError{
		Code:    "PAGE_NOT_FOUND",
		Message: "page not found",
	}
)

// ============================================================================
// Error Wrapping Helpers
// ============================================================================

// WrapFileSystem wraps an error as a filesystem failure
func WrapFileSystem(operation string, cause error) error {
	return &DomainError{
		Code:    ErrFileSystem.Code,
		Message: fmt.Sprintf("filesystem operation failed: %s", operation),
		Cause:   cause,
	}
}

// WrapInvalidRequest wraps an error as an invalid request
func WrapInvalidRequest(what string, cause error) error {
	return &DomainError{
		Code:    ErrInvalidRequest.Code,
		Message: fmt.Sprintf("invalid %s", what),
		Cause:   cause,
	}
}

// ============================================================================
// Error Kinds
// ============================================================================

// Kind is the closed set of error categories callers switch on, so they do
// not depend on the shape of provider errors.
type Kind int

const (
	KindNone Kind = iota
	KindNotAuthenticated
	KindInvalidCredentials
	KindConflict
	KindNotFound
	KindInvalidRequest
	KindProvider
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindProvider:
		return "provider"
	default:
		return "internal"
	}
}

// KindOf classifies err. Errors without a recognised code are internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	switch identity.CodeOf(err) {
	case ErrNotAuthenticated.Code, identity.CodeSessionNotFound:
		return KindNotAuthenticated
	case identity.CodeInvalidCredentials, identity.CodeOTPExpired:
		return KindInvalidCredentials
	case identity.CodeUserAlreadyExists:
		return KindConflict
	case identity.CodeNoRows, ErrPageNotFound.Code:
		return KindNotFound
	case ErrInvalidRequest.Code, identity.CodeValidationFailed, identity.CodeWeakPassword, identity.CodeMultipleRows:
		return KindInvalidRequest
	case identity.CodeProviderDisabled, identity.CodeUnexpectedFailure:
		return KindProvider
	default:
		return KindInternal
	}
}

// PublicMessage returns a message safe to show to API clients
func PublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "An error occurred"
}
