// Package session is the process's single source of truth for who is signed
// in. It wraps an identity provider, caches the current user, fans provider
// events out to listeners and keeps bound documents in sync.
//
// Sign-in and sign-up report only whether the request succeeded. The cached
// user changes when the provider pushes the resulting event, which may
// arrive after the call returns; callers that need the new user must wait for
// it with OnAuthStateChange or call GetCurrentUser.
//
// UpdateProfile always writes the signed-in user's ID and the current time
// into the "id" and "updated_at" columns. Values for those keys in the
// caller's updates are ignored, so a profile cannot be written under another
// user's ID.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/identity"
)

const (
	// ProfilesTable holds one profile record per user, keyed by user ID.
	ProfilesTable = "user_profiles"
	// ResetPasswordPath is where password recovery links land.
	ResetPasswordPath = "/reset-password.html"

	profileIDColumn        = "id"
	profileUpdatedAtColumn = "updated_at"
	timestampLayout        = "2006-01-02T15:04:05.000Z07:00"
)

// Options configures a Facade
type Options struct {
	Provider identity.Provider
	Records  identity.RecordStore
	// Origin is the site's scheme and host, e.g. "https://bench.example.com".
	Origin string
	// LoginPath defaults to DefaultLoginPath.
	LoginPath string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Facade wraps an identity provider
type Facade struct {
	provider  identity.Provider
	records   identity.RecordStore
	origin    string
	loginPath string
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state state
	// gen counts provider events; fetches that started before the latest
	// event do not overwrite it
	gen  uint64
	docs []Document

	dispatchMu sync.Mutex
	renderMu   sync.Mutex
	listeners  registry
	sub        identity.Subscription
}

// New creates a facade and subscribes it to the provider's auth-state
// changes. Call Initialize to load an existing session.
func New(opts Options) (*Facade, error) {
	if opts.Provider == nil {
		return nil, errors.New("session: provider is required")
	}
	if opts.Records == nil {
		return nil, errors.New("session: record store is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = DefaultLoginPath
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	f := &Facade{
		provider:  opts.Provider,
		records:   opts.Records,
		origin:    strings.TrimRight(opts.Origin, "/"),
		loginPath: opts.LoginPath,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	f.sub = opts.Provider.OnAuthStateChange(f.handleEvent)
	return f, nil
}

// Close stops listening to the provider
func (f *Facade) Close() {
	if f.sub != nil {
		f.sub.Unsubscribe()
	}
}

// Initialize loads the provider's current session into the cache and
// renders. Provider errors are logged, not returned.
func (f *Facade) Initialize(ctx context.Context) {
	if _, err := f.GetCurrentUser(ctx); err != nil {
		f.logger.WarnContext(ctx, "failed to load session", "error", err)
	}
}

// GetCurrentUser asks the provider for the current session, caches its user
// and renders. A provider event that arrives while the request is in flight
// takes precedence over the fetched value.
func (f *Facade) GetCurrentUser(ctx context.Context) (*identity.User, error) {
	f.mu.Lock()
	gen := f.gen
	f.mu.Unlock()

	session, err := f.provider.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.gen == gen {
		f.state = state{user: identity.SessionUser(session)}
	} else {
		f.logger.DebugContext(ctx, "session fetch superseded by provider event")
	}
	user := f.state.user
	f.mu.Unlock()

	f.renderAll()
	return user, nil
}

// CurrentUser returns the cached user without asking the provider
func (f *Facade) CurrentUser() *identity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.user
}

// IsAuthenticated reports whether a user is cached
func (f *Facade) IsAuthenticated() bool {
	return f.CurrentUser() != nil
}

// SignUp registers an account with displayName stored as user metadata
func (f *Facade) SignUp(ctx context.Context, email, password, displayName string) (*identity.AuthResponse, error) {
	return f.provider.SignUp(ctx, identity.SignUpCredentials{
		Email:    email,
		Password: password,
		Data:     map[string]any{identity.MetadataDisplayName: displayName},
	})
}

// SignIn signs in with e-mail and password
func (f *Facade) SignIn(ctx context.Context, email, password string) (*identity.AuthResponse, error) {
	return f.provider.SignInWithPassword(ctx, email, password)
}

// SignInWithProvider starts a federated sign-in that returns to the site's
// origin. The visitor must be sent to the returned URL.
func (f *Facade) SignInWithProvider(ctx context.Context, providerName string) (*identity.OAuthResponse, error) {
	return f.provider.SignInWithOAuth(ctx, identity.OAuthCredentials{
		Provider:   providerName,
		RedirectTo: f.origin,
	})
}

// SignOut signs out. The cache is cleared by the provider's SIGNED_OUT
// event, not by this call.
func (f *Facade) SignOut(ctx context.Context) error {
	return f.provider.SignOut(ctx)
}

// ResetPassword sends a recovery e-mail linking to the reset page
func (f *Facade) ResetPassword(ctx context.Context, email string) error {
	return f.provider.ResetPasswordForEmail(ctx, email, f.origin+ResetPasswordPath)
}

// UpdateProfile upserts updates into the signed-in user's profile record,
// stamped with the user ID and the current time.
func (f *Facade) UpdateProfile(ctx context.Context, updates map[string]any) error {
	user := f.CurrentUser()
	if user == nil {
		return domain.ErrNotAuthenticated
	}

	row := make(identity.Record, len(updates)+2)
	for k, v := range updates {
		row[k] = v
	}
	row[profileIDColumn] = user.ID
	row[profileUpdatedAtColumn] = f.now().UTC().Format(timestampLayout)

	return f.records.Upsert(ctx, ProfilesTable, row)
}

// GetUserProfile returns the signed-in user's profile record. It returns nil
// without error when nobody is signed in or no profile exists yet.
func (f *Facade) GetUserProfile(ctx context.Context) (identity.Record, error) {
	user := f.CurrentUser()
	if user == nil {
		return nil, nil
	}

	record, err := f.records.Single(ctx, ProfilesTable, identity.Eq(profileIDColumn, user.ID))
	if err != nil {
		if identity.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// OnAuthStateChange registers fn for provider events. Listeners run in
// registration order, before bound documents are re-rendered.
func (f *Facade) OnAuthStateChange(fn identity.StateChangeFunc) identity.Subscription {
	return f.listeners.add(fn)
}

// RequireAuth reports whether a user is cached. When none is, nav is sent to
// the login page.
func (f *Facade) RequireAuth(nav Navigator) bool {
	if f.IsAuthenticated() {
		return true
	}
	nav.Navigate(f.loginPath)
	return false
}

// Attach binds doc so it is re-rendered on every state change. doc is
// rendered immediately.
func (f *Facade) Attach(doc Document) {
	f.renderMu.Lock()
	defer f.renderMu.Unlock()

	f.mu.Lock()
	f.docs = append(f.docs, doc)
	st := f.state
	f.mu.Unlock()

	render(doc, st)
}

// Render applies the cached state to doc without binding it
func (f *Facade) Render(doc Document) {
	f.renderMu.Lock()
	defer f.renderMu.Unlock()

	f.mu.Lock()
	st := f.state
	f.mu.Unlock()

	render(doc, st)
}

// handleEvent is the provider subscription callback
func (f *Facade) handleEvent(event identity.Event, session *identity.Session) {
	f.dispatchMu.Lock()
	defer f.dispatchMu.Unlock()

	f.mu.Lock()
	f.state = reduce(f.state, event, session)
	f.gen++
	f.mu.Unlock()

	f.logger.Debug("auth state changed", "event", event, "authenticated", session != nil)

	for _, fn := range f.listeners.snapshot() {
		fn(event, session)
	}
	f.renderAll()
}

// renderAll re-renders bound documents with the latest state
func (f *Facade) renderAll() {
	f.renderMu.Lock()
	defer f.renderMu.Unlock()

	f.mu.Lock()
	st := f.state
	docs := append([]Document(nil), f.docs...)
	f.mu.Unlock()

	for _, doc := range docs {
		render(doc, st)
	}
}
