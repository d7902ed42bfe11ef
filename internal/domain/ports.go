package domain

import (
	"context"

	"github.com/workbench/internal/identity"
)

// ============================================================================
// Primary Ports (Application Use Cases)
// ============================================================================

// SessionService is the session facade as seen by the HTTP layer
type SessionService interface {
	GetCurrentUser(ctx context.Context) (*identity.User, error)
	CurrentUser() *identity.User
	SignUp(ctx context.Context, email, password, displayName string) (*identity.AuthResponse, error)
	SignIn(ctx context.Context, email, password string) (*identity.AuthResponse, error)
	SignInWithProvider(ctx context.Context, providerName string) (*identity.OAuthResponse, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, updates map[string]any) error
	GetUserProfile(ctx context.Context) (identity.Record, error)
	OnAuthStateChange(fn identity.StateChangeFunc) identity.Subscription
}

// RecoveryService completes password recovery started by ResetPassword
type RecoveryService interface {
	VerifyRecovery(ctx context.Context, token string) (*identity.AuthResponse, error)
	UpdatePassword(ctx context.Context, password string) (*identity.User, error)
}

// DocumentSaver persists JSON documents
type DocumentSaver interface {
	Save(raw []byte) error
}

// ============================================================================
// Request DTOs
// ============================================================================

// SignUpRequest is the body of a sign-up call
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// SignInRequest is the body of a password sign-in call
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest is the body of a password reset call
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// RecoverRequest redeems a recovery token
type RecoverRequest struct {
	Token string `json:"token"`
}

// UpdatePasswordRequest sets a new password
type UpdatePasswordRequest struct {
	Password string `json:"password"`
}
