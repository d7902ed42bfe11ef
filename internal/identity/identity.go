// Package identity defines the contract between the session facade and an
// identity provider: users, sessions, auth-state events, the provider itself
// and the keyed record store it hosts. Implementations own all durability and
// credential logic.
package identity

import (
	"context"
	"time"
)

// Event names an auth-state change pushed by a provider.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// MetadataDisplayName is the user metadata key holding the display name.
const MetadataDisplayName = "display_name"

// User is the provider's view of an account.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// DisplayName returns the display name stored in user metadata, if any.
func (u *User) DisplayName() string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	name, _ := u.UserMetadata[MetadataDisplayName].(string)
	return name
}

// Session is an authenticated login as issued by the provider.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// SessionUser returns the session's user, tolerating a nil session.
func SessionUser(s *Session) *User {
	if s == nil {
		return nil
	}
	return s.User
}

// AuthResponse is the payload of a successful sign-up or sign-in. Session is
// nil when sign-up requires confirmation.
type AuthResponse struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// OAuthResponse carries the URL the browser must navigate to in order to
// continue a federated sign-in.
type OAuthResponse struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// SignUpCredentials registers a new account. Data is stored as user metadata.
type SignUpCredentials struct {
	Email    string
	Password string
	Data     map[string]any
}

// OAuthCredentials starts a federated sign-in.
type OAuthCredentials struct {
	Provider   string
	RedirectTo string
}

// StateChangeFunc receives auth-state changes.
type StateChangeFunc func(event Event, session *Session)

// Subscription is a handle to a registered callback.
type Subscription interface {
	Unsubscribe()
}

// Provider is the external identity service the facade delegates to.
type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn StateChangeFunc) Subscription
	SignUp(ctx context.Context, creds SignUpCredentials) (*AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error)
	SignInWithOAuth(ctx context.Context, creds OAuthCredentials) (*OAuthResponse, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// Record is one row of the provider-hosted record store.
type Record map[string]any

// Filter is an equality predicate on a record column.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// RecordStore is the provider-hosted keyed record store. Single must fail
// with an error whose code is CodeNoRows when nothing matches.
type RecordStore interface {
	Upsert(ctx context.Context, table string, row Record) error
	Single(ctx context.Context, table string, filters ...Filter) (Record, error)
}
