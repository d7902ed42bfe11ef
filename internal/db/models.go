package db

import (
	"time"

	"github.com/google/uuid"
)

// ProviderEmail marks accounts created with e-mail and password.
const ProviderEmail = "email"

// User is an account row. Federated users have no password hash.
type User struct {
	ID             string         `json:"id" db:"id"`
	Email          string         `json:"email" db:"email"`
	PasswordHash   string         `json:"-" db:"password_hash"` // Never expose the hash in JSON
	Provider       string         `json:"provider" db:"provider"`
	ProviderUserID string         `json:"provider_user_id" db:"provider_user_id"`
	Metadata       map[string]any `json:"user_metadata" db:"user_metadata"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Session is an issued login. The refresh token is rotated on refresh.
type Session struct {
	ID           string    `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	Revoked      bool      `json:"revoked" db:"revoked"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RecoveryToken is a single-use password recovery token
type RecoveryToken struct {
	Token     string    `json:"-" db:"token"`
	UserID    string    `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Used      bool      `json:"used" db:"used"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewUser creates a new User with a generated UUID
func NewUser(email, passwordHash, provider string, metadata map[string]any) *User {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		Provider:     provider,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewSession creates a new Session with generated ID and refresh token
func NewSession(userID string, expiresAt time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    expiresAt.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
}

// NewRecoveryToken creates a new RecoveryToken valid for ttl
func NewRecoveryToken(userID string, ttl time.Duration) *RecoveryToken {
	now := time.Now().UTC()
	return &RecoveryToken{
		Token:     uuid.New().String(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}
