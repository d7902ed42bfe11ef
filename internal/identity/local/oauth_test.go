package local

import (
	"context"
	"testing"

	"github.com/go-pkgz/auth/token"

	"github.com/workbench/internal/identity"
)

func TestSignInWithOAuth(t *testing.T) {
	p, _, cleanup := setupTestProvider(t, true)
	defer cleanup()
	ctx := context.Background()

	_, err := p.SignInWithOAuth(ctx, identity.OAuthCredentials{Provider: "github", RedirectTo: "http://localhost:3001"})
	if identity.CodeOf(err) != identity.CodeProviderDisabled {
		t.Fatalf("Expected provider_disabled before federation, got %v", err)
	}

	service := p.EnableFederation(FederationConfig{
		SiteURL: "http://localhost:3001/",
		Clients: []OAuthClient{{Name: "github", ClientID: "cid", ClientSecret: "csecret"}},
	})
	if service == nil {
		t.Fatal("Expected an auth service")
	}

	resp, err := p.SignInWithOAuth(ctx, identity.OAuthCredentials{Provider: "github", RedirectTo: "http://localhost:3001"})
	if err != nil {
		t.Fatalf("Expected OAuth start to succeed, got %v", err)
	}
	want := "http://localhost:3001/auth/github/login?from=http%3A%2F%2Flocalhost%3A3001"
	if resp.URL != want {
		t.Errorf("Expected URL %s, got %s", want, resp.URL)
	}

	if _, err := p.SignInWithOAuth(ctx, identity.OAuthCredentials{Provider: "google"}); identity.CodeOf(err) != identity.CodeProviderDisabled {
		t.Errorf("Expected provider_disabled for google, got %v", err)
	}
}

func TestCompleteOAuth(t *testing.T) {
	p, _, cleanup := setupTestProvider(t, true)
	defer cleanup()
	events, sub := subscribe(t, p)
	defer sub.Unsubscribe()

	claims := token.Claims{User: &token.User{ID: "github_abc123", Name: "octocat"}}
	updated := p.completeOAuth(claims)
	events.expect(t, identity.EventSignedIn)

	if updated.User.StrAttr("local_user_id") == "" {
		t.Error("Expected local user id attribute on claims")
	}

	session, err := p.GetSession(context.Background())
	if err != nil || session == nil {
		t.Fatalf("Expected a current session, got %v, %v", session, err)
	}
	if session.User.DisplayName() != "octocat" {
		t.Errorf("Expected display name octocat, got %q", session.User.DisplayName())
	}
	if session.User.Email != "" {
		t.Errorf("Expected no email for federated user, got %q", session.User.Email)
	}

	// a second login reuses the account
	again := p.completeOAuth(token.Claims{User: &token.User{ID: "github_abc123", Name: "octocat"}})
	events.expect(t, identity.EventSignedIn)
	if again.User.StrAttr("local_user_id") != updated.User.StrAttr("local_user_id") {
		t.Error("Expected the same local account on repeated login")
	}
}

func TestProviderOf(t *testing.T) {
	tests := map[string]string{
		"github_3f2a": "github",
		"google_x_y":  "google",
		"plain":       "plain",
	}
	for id, want := range tests {
		if got := providerOf(id); got != want {
			t.Errorf("providerOf(%q) = %q, want %q", id, got, want)
		}
	}
}
