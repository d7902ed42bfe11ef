// Package local is a self-hosted identity provider backed by SQLite. It plays
// the role of the browser-side client of a hosted identity service: it holds
// the current session of the process and pushes auth-state changes to
// subscribers.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/workbench/internal/db"
	"github.com/workbench/internal/identity"
	"github.com/workbench/internal/mail"
)

const (
	minPasswordLength = 6
	defaultAccessTTL  = time.Hour
	refreshTokenTTL   = 30 * 24 * time.Hour
	recoveryTokenTTL  = time.Hour
	tokenTypeBearer   = "bearer"
)

// Config configures a Provider
type Config struct {
	JWTSecret         string
	AccessTokenTTL    time.Duration
	AutoConfirmSignUp bool
}

// Provider implements identity.Provider on top of the local database
type Provider struct {
	db     *db.DB
	mailer mail.Sender
	logger *slog.Logger
	cfg    Config
	secret []byte
	bus    *broadcaster

	// mu guards the current session. Changes are published before it is
	// released, so subscribers see them in the order they were made.
	mu        sync.Mutex
	current   *identity.Session
	sessionID string

	// federation is set by EnableFederation
	fedMu     sync.RWMutex
	authURL   string
	federated map[string]bool
}

// New creates a new local provider
func New(database *db.DB, mailer mail.Sender, cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("local provider: JWT secret is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		db:        database,
		mailer:    mailer,
		logger:    logger,
		cfg:       cfg,
		secret:    []byte(cfg.JWTSecret),
		bus:       newBroadcaster(),
		federated: make(map[string]bool),
	}, nil
}

// Close stops delivery to all subscribers
func (p *Provider) Close() {
	p.bus.close()
}

// OnAuthStateChange registers fn. The current session is delivered first as
// INITIAL_SESSION; later changes follow in the order they happened.
func (p *Provider) OnAuthStateChange(fn identity.StateChangeFunc) identity.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, sub := p.bus.subscribe(fn)
	sub.enqueue(notification{event: identity.EventInitialSession, session: p.current})

	return subscription{b: p.bus, id: id}
}

// GetSession returns the current session, refreshing an expired access token
// when the underlying login is still valid. A revoked or expired login clears
// the session and reports SIGNED_OUT.
func (p *Provider) GetSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	current, sessionID := p.current, p.sessionID
	p.mu.Unlock()

	if current == nil {
		return nil, nil
	}

	row, err := p.db.GetSession(ctx, sessionID)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, unexpected(err)
	}
	if errors.Is(err, db.ErrNotFound) || row.Revoked || time.Now().After(row.ExpiresAt) {
		p.clear(sessionID)
		return nil, nil
	}

	if _, err := parseAccessToken(p.secret, current.AccessToken); err != nil {
		return p.RefreshSession(ctx)
	}
	return current, nil
}

// SignUp registers an e-mail account. With auto-confirm enabled the new user
// is signed in immediately.
func (p *Provider) SignUp(ctx context.Context, creds identity.SignUpCredentials) (*identity.AuthResponse, error) {
	email := normalizeEmail(creds.Email)
	if email == "" {
		return nil, identity.NewAuthError(http.StatusBadRequest, identity.CodeValidationFailed, "Email address is required")
	}
	if len(creds.Password) < minPasswordLength {
		return nil, identity.NewAuthError(http.StatusUnprocessableEntity, identity.CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters", minPasswordLength))
	}

	if _, err := p.db.GetUserByEmail(ctx, email); err == nil {
		return nil, errUserExists()
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, unexpected(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, unexpected(err)
	}

	user := db.NewUser(email, string(hash), db.ProviderEmail, creds.Data)
	if err := p.db.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, errUserExists()
		}
		return nil, unexpected(err)
	}
	p.logger.InfoContext(ctx, "user signed up", "user_id", user.ID)

	if !p.cfg.AutoConfirmSignUp {
		return &identity.AuthResponse{User: toIdentityUser(user)}, nil
	}

	session, err := p.startSession(ctx, user, identity.EventSignedIn)
	if err != nil {
		return nil, err
	}
	return &identity.AuthResponse{User: session.User, Session: session}, nil
}

// SignInWithPassword verifies credentials and starts a new session
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthResponse, error) {
	user, err := p.db.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, unexpected(err)
	}
	if user.PasswordHash == "" {
		return nil, errInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials()
	}

	session, err := p.startSession(ctx, user, identity.EventSignedIn)
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(ctx, "user signed in", "user_id", user.ID)
	return &identity.AuthResponse{User: session.User, Session: session}, nil
}

// SignOut revokes the current session. SIGNED_OUT is reported even when no
// session was held.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sessionID := p.sessionID
	p.current, p.sessionID = nil, ""
	p.bus.publish(identity.EventSignedOut, nil)
	p.mu.Unlock()

	var revokeErr error
	if sessionID != "" {
		if err := p.db.RevokeSession(ctx, sessionID); err != nil && !errors.Is(err, db.ErrNotFound) {
			revokeErr = unexpected(err)
		}
	}
	return revokeErr
}

// RefreshSession rotates the refresh token of the current session and issues
// a new access token.
func (p *Provider) RefreshSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	current, sessionID := p.current, p.sessionID
	p.mu.Unlock()

	if current == nil {
		return nil, errSessionMissing()
	}

	row, err := p.db.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			p.clear(sessionID)
			return nil, errSessionMissing()
		}
		return nil, unexpected(err)
	}
	user, err := p.db.GetUserByID(ctx, row.UserID)
	if err != nil {
		return nil, unexpected(err)
	}

	rotated := db.NewSession(user.ID, time.Now().Add(refreshTokenTTL))
	if err := p.db.RotateSession(ctx, sessionID, rotated.RefreshToken, rotated.ExpiresAt); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			p.clear(sessionID)
			return nil, errSessionMissing()
		}
		return nil, unexpected(err)
	}
	row.RefreshToken = rotated.RefreshToken
	row.ExpiresAt = rotated.ExpiresAt

	session, err := p.buildSession(user, row)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.sessionID != sessionID {
		// signed out or replaced meanwhile
		p.mu.Unlock()
		return nil, errSessionMissing()
	}
	p.current = session
	p.bus.publish(identity.EventTokenRefreshed, session)
	p.mu.Unlock()

	return session, nil
}

// ExpiresWithin reports whether a session is held whose access token expires
// within d.
func (p *Provider) ExpiresWithin(d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return false
	}
	return time.Until(p.current.ExpiresAt) <= d
}

// PurgeExpired deletes expired sessions and used or expired recovery tokens
func (p *Provider) PurgeExpired(ctx context.Context) (int64, int64, error) {
	return p.db.PurgeExpired(ctx, time.Now())
}

// startSession persists a new login for user, makes it current and
// publishes event. A previously held session is revoked.
func (p *Provider) startSession(ctx context.Context, user *db.User, event identity.Event) (*identity.Session, error) {
	row := db.NewSession(user.ID, time.Now().Add(refreshTokenTTL))
	if err := p.db.CreateSession(ctx, row); err != nil {
		return nil, unexpected(err)
	}

	session, err := p.buildSession(user, row)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	previous := p.sessionID
	p.current, p.sessionID = session, row.ID
	p.bus.publish(event, session)
	p.mu.Unlock()

	if previous != "" && previous != row.ID {
		if err := p.db.RevokeSession(ctx, previous); err != nil && !errors.Is(err, db.ErrNotFound) {
			p.logger.WarnContext(ctx, "failed to revoke replaced session", "error", err)
		}
	}
	return session, nil
}

func (p *Provider) buildSession(user *db.User, row *db.Session) (*identity.Session, error) {
	expiresAt := time.Now().Add(p.cfg.AccessTokenTTL).Truncate(time.Second)
	access, err := signAccessToken(p.secret, user.ID, user.Email, row.ID, expiresAt)
	if err != nil {
		return nil, unexpected(err)
	}

	return &identity.Session{
		AccessToken:  access,
		RefreshToken: row.RefreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(p.cfg.AccessTokenTTL / time.Second),
		ExpiresAt:    expiresAt,
		User:         toIdentityUser(user),
	}, nil
}

// clear drops the current session if it is still sessionID
func (p *Provider) clear(sessionID string) {
	p.mu.Lock()
	if p.sessionID != sessionID {
		p.mu.Unlock()
		return
	}
	p.current, p.sessionID = nil, ""
	p.bus.publish(identity.EventSignedOut, nil)
	p.mu.Unlock()
}

func toIdentityUser(u *db.User) *identity.User {
	metadata := make(map[string]any, len(u.Metadata))
	for k, v := range u.Metadata {
		metadata[k] = v
	}
	return &identity.User{
		ID:           u.ID,
		Email:        u.Email,
		UserMetadata: metadata,
		AppMetadata:  map[string]any{"provider": u.Provider},
		CreatedAt:    u.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func errInvalidCredentials() error {
	return identity.NewAuthError(http.StatusBadRequest, identity.CodeInvalidCredentials, "Invalid login credentials")
}

func errUserExists() error {
	return identity.NewAuthError(http.StatusUnprocessableEntity, identity.CodeUserAlreadyExists, "User already registered")
}

func errSessionMissing() error {
	return identity.NewAuthError(http.StatusUnauthorized, identity.CodeSessionNotFound, "Auth session missing!")
}

func unexpected(err error) error {
	return fmt.Errorf("%w: %v", identity.NewAuthError(http.StatusInternalServerError, identity.CodeUnexpectedFailure, "Unexpected failure, please try again"), err)
}

var _ identity.Provider = (*Provider)(nil)
