package identity

import (
	"errors"
	"fmt"
)

// Error codes reported by providers and record stores.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserAlreadyExists  = "user_already_exists"
	CodeProviderDisabled   = "provider_disabled"
	CodeSessionNotFound    = "session_not_found"
	CodeValidationFailed   = "validation_failed"
	CodeWeakPassword       = "weak_password"
	CodeOTPExpired         = "otp_expired"
	CodeUnexpectedFailure  = "unexpected_failure"

	// CodeNoRows is returned by RecordStore.Single when nothing matched.
	CodeNoRows = "PGRST116"
	// CodeMultipleRows is returned by RecordStore.Single when more than one row matched.
	CodeMultipleRows = "PGRST117"
)

// Coder is implemented by errors that carry a machine-readable code.
type Coder interface {
	ErrorCode() string
}

// CodeOf returns the code of the first error in the chain implementing Coder.
func CodeOf(err error) string {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// IsNoRows reports whether err is a record store "no rows" outcome.
func IsNoRows(err error) bool {
	return err != nil && CodeOf(err) == CodeNoRows
}

// AuthError is the error shape of identity provider calls.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// ErrorCode implements Coder.
func (e *AuthError) ErrorCode() string {
	return e.Code
}

// NewAuthError creates a provider error
func NewAuthError(status int, code, message string) *AuthError {
	return &AuthError{Status: status, Code: code, Message: message}
}
