package session

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/identity"
	"github.com/workbench/internal/logger"
)

// fakeProvider records calls and lets tests push events synchronously.
type fakeProvider struct {
	mu         sync.Mutex
	callback   identity.StateChangeFunc
	session    *identity.Session
	err        error
	calls      []string
	lastSignUp identity.SignUpCredentials
	lastOAuth  identity.OAuthCredentials
	lastReset  string

	// getSessionHook runs inside GetSession before it returns
	getSessionHook func()
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *fakeProvider) push(event identity.Event, session *identity.Session) {
	p.mu.Lock()
	cb := p.callback
	p.mu.Unlock()
	cb(event, session)
}

func (p *fakeProvider) GetSession(context.Context) (*identity.Session, error) {
	p.record("GetSession")
	if p.getSessionHook != nil {
		p.getSessionHook()
	}
	return p.session, p.err
}

func (p *fakeProvider) OnAuthStateChange(fn identity.StateChangeFunc) identity.Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callback = fn
	return identity.Subscription(unsubscribeFunc(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.callback = func(identity.Event, *identity.Session) {}
	}))
}

func (p *fakeProvider) SignUp(_ context.Context, creds identity.SignUpCredentials) (*identity.AuthResponse, error) {
	p.record("SignUp")
	p.lastSignUp = creds
	if p.err != nil {
		return nil, p.err
	}
	return &identity.AuthResponse{User: &identity.User{ID: "new", Email: creds.Email}}, nil
}

func (p *fakeProvider) SignInWithPassword(context.Context, string, string) (*identity.AuthResponse, error) {
	p.record("SignInWithPassword")
	if p.err != nil {
		return nil, p.err
	}
	return &identity.AuthResponse{}, nil
}

func (p *fakeProvider) SignInWithOAuth(_ context.Context, creds identity.OAuthCredentials) (*identity.OAuthResponse, error) {
	p.record("SignInWithOAuth")
	p.lastOAuth = creds
	if p.err != nil {
		return nil, p.err
	}
	return &identity.OAuthResponse{Provider: creds.Provider, URL: "https://idp/" + creds.Provider}, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.record("SignOut")
	return p.err
}

func (p *fakeProvider) ResetPasswordForEmail(_ context.Context, _ string, redirectTo string) error {
	p.record("ResetPasswordForEmail")
	p.lastReset = redirectTo
	return p.err
}

type unsubscribeFunc func()

func (f unsubscribeFunc) Unsubscribe() { f() }

type fakeStore struct {
	mu      sync.Mutex
	calls   int
	upserts []identity.Record
	record  identity.Record
	err     error
}

func (s *fakeStore) Upsert(_ context.Context, _ string, row identity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.upserts = append(s.upserts, row)
	return s.err
}

func (s *fakeStore) Single(context.Context, string, ...identity.Filter) (identity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.record, s.err
}

type codedError struct{ code string }

func (e *codedError) Error() string     { return "store error " + e.code }
func (e *codedError) ErrorCode() string { return e.code }

func setupTestFacade(t *testing.T) (*Facade, *fakeProvider, *fakeStore) {
	t.Helper()

	provider := &fakeProvider{}
	store := &fakeStore{}
	f, err := New(Options{
		Provider: provider,
		Records:  store,
		Origin:   "https://bench.example.com/",
		Logger:   logger.Discard(),
		Now: func() time.Time {
			return time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
		},
	})
	if err != nil {
		t.Fatalf("Failed to create facade: %v", err)
	}
	t.Cleanup(f.Close)
	return f, provider, store
}

func sessionFor(id string) *identity.Session {
	return &identity.Session{User: &identity.User{ID: id}}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Options{Records: &fakeStore{}}); err == nil {
		t.Error("Expected missing provider to fail")
	}
	if _, err := New(Options{Provider: &fakeProvider{}}); err == nil {
		t.Error("Expected missing record store to fail")
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	f, provider, _ := setupTestFacade(t)

	var order []string
	var seen []*identity.Session
	f.OnAuthStateChange(func(event identity.Event, s *identity.Session) {
		if event != identity.EventSignedIn {
			t.Errorf("Expected SIGNED_IN, got %s", event)
		}
		order = append(order, "A")
		seen = append(seen, s)
	})
	f.OnAuthStateChange(func(event identity.Event, s *identity.Session) {
		order = append(order, "B")
		seen = append(seen, s)
	})

	pushed := sessionFor("u1")
	provider.push(identity.EventSignedIn, pushed)

	if !reflect.DeepEqual(order, []string{"A", "B"}) {
		t.Errorf("Expected [A B], got %v", order)
	}
	for i, s := range seen {
		if s != pushed {
			t.Errorf("Listener %d got a different session", i)
		}
	}
	if user := f.CurrentUser(); user == nil || user.ID != "u1" {
		t.Errorf("Expected cached user u1, got %+v", user)
	}
}

func TestListenersSeeUpdatedStateBeforeRender(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	doc := newFakeDocument(
		newFakeElement(AttrAuth, StateAuthenticated),
	)
	f.Attach(doc)

	f.OnAuthStateChange(func(identity.Event, *identity.Session) {
		if !f.IsAuthenticated() {
			t.Error("Expected cached user to be set when listeners run")
		}
		if doc.elements[0].visible {
			t.Error("Expected render to run after listeners")
		}
	})

	provider.push(identity.EventSignedIn, sessionFor("u1"))

	if !doc.elements[0].visible {
		t.Error("Expected element to be shown after render")
	}
}

func TestCachedUserFollowsLatestEvent(t *testing.T) {
	f, provider, _ := setupTestFacade(t)

	events := []struct {
		event   identity.Event
		session *identity.Session
		want    string
	}{
		{identity.EventInitialSession, nil, ""},
		{identity.EventSignedIn, sessionFor("u1"), "u1"},
		{identity.EventTokenRefreshed, sessionFor("u1"), "u1"},
		{identity.EventSignedIn, sessionFor("u2"), "u2"},
		{identity.EventUserUpdated, &identity.Session{}, ""},
		{identity.EventSignedIn, sessionFor("u3"), "u3"},
		{identity.EventSignedOut, nil, ""},
	}

	for _, e := range events {
		provider.push(e.event, e.session)
		got := ""
		if user := f.CurrentUser(); user != nil {
			got = user.ID
		}
		if got != e.want {
			t.Errorf("After %s expected cached user %q, got %q", e.event, e.want, got)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	f, provider, _ := setupTestFacade(t)

	var calls int
	sub := f.OnAuthStateChange(func(identity.Event, *identity.Session) { calls++ })
	duplicate := func(identity.Event, *identity.Session) { calls++ }
	f.OnAuthStateChange(duplicate)
	f.OnAuthStateChange(duplicate)

	provider.push(identity.EventSignedIn, sessionFor("u1"))
	if calls != 3 {
		t.Fatalf("Expected 3 calls, got %d", calls)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	provider.push(identity.EventSignedOut, nil)
	if calls != 5 {
		t.Errorf("Expected 5 calls after unsubscribe, got %d", calls)
	}
	if f.listeners.count() != 2 {
		t.Errorf("Expected 2 listeners left, got %d", f.listeners.count())
	}
}

func TestClose(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	f.Close()

	provider.push(identity.EventSignedIn, sessionFor("u1"))
	if f.IsAuthenticated() {
		t.Error("Expected closed facade to ignore provider events")
	}
}

func TestGetCurrentUser(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	doc := newFakeDocument(newFakeElement(AttrUserName, ""))
	f.Attach(doc)

	provider.session = &identity.Session{User: &identity.User{ID: "u1", Email: "ada@example.com"}}
	user, err := f.GetCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if user == nil || user.ID != "u1" {
		t.Fatalf("Expected user u1, got %+v", user)
	}
	if doc.elements[0].text != "ada@example.com" {
		t.Errorf("Expected render after fetch, got text %q", doc.elements[0].text)
	}

	// always asks the provider
	if _, err := f.GetCurrentUser(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n := len(provider.calls); n != 2 {
		t.Errorf("Expected 2 provider calls, got %d", n)
	}

	provider.session = nil
	user, _ = f.GetCurrentUser(context.Background())
	if user != nil || f.IsAuthenticated() {
		t.Error("Expected no user after provider reports no session")
	}
}

func TestGetCurrentUser_ProviderError(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	provider.push(identity.EventSignedIn, sessionFor("u1"))

	providerErr := identity.NewAuthError(500, identity.CodeUnexpectedFailure, "down")
	provider.err = providerErr

	if _, err := f.GetCurrentUser(context.Background()); err != providerErr {
		t.Errorf("Expected provider error verbatim, got %v", err)
	}
	if !f.IsAuthenticated() {
		t.Error("Expected failed fetch to keep the cached user")
	}
}

func TestGetCurrentUser_EventDuringFetchWins(t *testing.T) {
	f, provider, _ := setupTestFacade(t)

	provider.session = nil
	provider.getSessionHook = func() {
		provider.push(identity.EventSignedIn, sessionFor("pushed"))
	}

	user, err := f.GetCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if user == nil || user.ID != "pushed" {
		t.Errorf("Expected pushed user to win over stale fetch, got %+v", user)
	}
	if cached := f.CurrentUser(); cached == nil || cached.ID != "pushed" {
		t.Errorf("Expected cached user pushed, got %+v", cached)
	}
}

func TestInitialize_SwallowsErrors(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	provider.err = errors.New("network down")

	f.Initialize(context.Background())

	if f.IsAuthenticated() {
		t.Error("Expected no user after failed initialize")
	}

	provider.err = nil
	provider.session = sessionFor("u1")
	f.Initialize(context.Background())
	if !f.IsAuthenticated() {
		t.Error("Expected user after initialize")
	}
}

func TestForwardedCalls(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	ctx := context.Background()

	resp, err := f.SignUp(ctx, "ada@example.com", "secret123", "Ada")
	if err != nil || resp.User.Email != "ada@example.com" {
		t.Fatalf("Expected sign-up result passthrough, got %+v, %v", resp, err)
	}
	if provider.lastSignUp.Data[identity.MetadataDisplayName] != "Ada" {
		t.Errorf("Expected display name metadata, got %v", provider.lastSignUp.Data)
	}

	oauth, err := f.SignInWithProvider(ctx, "google")
	if err != nil {
		t.Fatalf("Expected OAuth start, got %v", err)
	}
	if oauth.URL != "https://idp/google" {
		t.Errorf("Expected provider URL passthrough, got %s", oauth.URL)
	}
	if provider.lastOAuth.RedirectTo != "https://bench.example.com" {
		t.Errorf("Expected origin as redirect target, got %s", provider.lastOAuth.RedirectTo)
	}

	if err := f.ResetPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("Expected reset to succeed, got %v", err)
	}
	if provider.lastReset != "https://bench.example.com/reset-password.html" {
		t.Errorf("Expected reset redirect, got %s", provider.lastReset)
	}

	// sign-in and sign-out do not touch the cache themselves
	if _, err := f.SignIn(ctx, "ada@example.com", "secret123"); err != nil {
		t.Fatalf("Expected sign-in to succeed, got %v", err)
	}
	if f.IsAuthenticated() {
		t.Error("Expected cache to wait for the provider event")
	}
	provider.push(identity.EventSignedIn, sessionFor("u1"))
	if err := f.SignOut(ctx); err != nil {
		t.Fatalf("Expected sign-out to succeed, got %v", err)
	}
	if !f.IsAuthenticated() {
		t.Error("Expected cache to keep the user until SIGNED_OUT arrives")
	}
}

func TestForwardedCalls_ErrorPassthrough(t *testing.T) {
	f, provider, _ := setupTestFacade(t)
	ctx := context.Background()
	providerErr := identity.NewAuthError(400, identity.CodeInvalidCredentials, "Invalid login credentials")
	provider.err = providerErr

	calls := map[string]func() error{
		"SignUp": func() error { _, err := f.SignUp(ctx, "a@b.c", "pw", ""); return err },
		"SignIn": func() error { _, err := f.SignIn(ctx, "a@b.c", "pw"); return err },
		"SignInWithProvider": func() error {
			_, err := f.SignInWithProvider(ctx, "github")
			return err
		},
		"SignOut":       func() error { return f.SignOut(ctx) },
		"ResetPassword": func() error { return f.ResetPassword(ctx, "a@b.c") },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); err != providerErr {
				t.Errorf("Expected provider error verbatim, got %v", err)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	f, provider, _ := setupTestFacade(t)

	var navigated []string
	nav := NavigatorFunc(func(path string) { navigated = append(navigated, path) })

	if f.RequireAuth(nav) {
		t.Error("Expected RequireAuth to return false without a user")
	}
	if !reflect.DeepEqual(navigated, []string{DefaultLoginPath}) {
		t.Errorf("Expected navigation to %s, got %v", DefaultLoginPath, navigated)
	}

	provider.push(identity.EventSignedIn, sessionFor("u1"))
	if !f.RequireAuth(nav) {
		t.Error("Expected RequireAuth to return true with a user")
	}
	if len(navigated) != 1 {
		t.Errorf("Expected no further navigation, got %v", navigated)
	}
}

func TestUpdateProfile(t *testing.T) {
	f, provider, store := setupTestFacade(t)
	ctx := context.Background()

	err := f.UpdateProfile(ctx, map[string]any{"bio": "hi"})
	if !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("Expected no store calls, got %d", store.calls)
	}

	provider.push(identity.EventSignedIn, sessionFor("u1"))
	if err := f.UpdateProfile(ctx, map[string]any{"bio": "hi", "id": "someone-else", "updated_at": "1999-01-01T00:00:00.000Z"}); err != nil {
		t.Fatalf("Expected update to succeed, got %v", err)
	}

	want := identity.Record{
		"bio":        "hi",
		"id":         "u1",
		"updated_at": "2026-03-04T04:06:07.890Z",
	}
	if !reflect.DeepEqual(store.upserts[0], want) {
		t.Errorf("Expected upsert %v, got %v", want, store.upserts[0])
	}

	storeErr := &codedError{code: "23505"}
	store.err = storeErr
	if err := f.UpdateProfile(ctx, nil); err != storeErr {
		t.Errorf("Expected store error verbatim, got %v", err)
	}
}

func TestGetUserProfile(t *testing.T) {
	f, provider, store := setupTestFacade(t)
	ctx := context.Background()

	profile, err := f.GetUserProfile(ctx)
	if profile != nil || err != nil {
		t.Fatalf("Expected nil, nil without a user, got %v, %v", profile, err)
	}
	if store.calls != 0 {
		t.Fatalf("Expected no store calls, got %d", store.calls)
	}

	provider.push(identity.EventSignedIn, sessionFor("u1"))

	tests := []struct {
		name    string
		record  identity.Record
		err     error
		want    identity.Record
		wantErr bool
	}{
		{"found", identity.Record{"id": "u1", "bio": "hi"}, nil, identity.Record{"id": "u1", "bio": "hi"}, false},
		{"no rows", nil, &codedError{code: identity.CodeNoRows}, nil, false},
		{"multiple rows", nil, &codedError{code: identity.CodeMultipleRows}, nil, true},
		{"other error", nil, errors.New("boom"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.record, store.err = tt.record, tt.err

			got, err := f.GetUserProfile(ctx)
			if tt.wantErr {
				if err != tt.err {
					t.Errorf("Expected store error verbatim, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
