package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/auth"
	"github.com/go-pkgz/auth/avatar"
	authlog "github.com/go-pkgz/auth/logger"
	"github.com/go-pkgz/auth/token"

	"github.com/workbench/internal/db"
	"github.com/workbench/internal/identity"
)

// OAuthClient holds the credentials of one federated provider
type OAuthClient struct {
	Name         string
	ClientID     string
	ClientSecret string
}

// FederationConfig configures federated sign-in
type FederationConfig struct {
	// SiteURL is the public origin; handlers are expected at SiteURL + "/auth".
	SiteURL       string
	SecureCookies bool
	Clients       []OAuthClient
}

// FederatedIdentity is the account data a federated provider returned
type FederatedIdentity struct {
	Provider       string
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
}

// EnableFederation builds the OAuth handler service for the configured
// clients. Completed logins become local sessions through the claims update
// hook. The returned service's handlers must be mounted at /auth.
func (p *Provider) EnableFederation(cfg FederationConfig) *auth.Service {
	authURL := strings.TrimRight(cfg.SiteURL, "/") + "/auth"

	opts := auth.Opts{
		SecretReader: token.SecretFunc(func(string) (string, error) {
			return string(p.secret), nil
		}),
		TokenDuration:  p.cfg.AccessTokenTTL,
		CookieDuration: refreshTokenTTL,
		Issuer:         tokenIssuer,
		URL:            authURL,
		AvatarStore:    avatar.NewNoOp(),
		SecureCookies:  cfg.SecureCookies,
		DisableXSRF:    true,
		ClaimsUpd:      token.ClaimsUpdFunc(p.completeOAuth),
		Logger: authlog.Func(func(format string, args ...interface{}) {
			p.logger.Debug(fmt.Sprintf(format, args...), "component", "oauth")
		}),
	}
	service := auth.NewService(opts)

	p.fedMu.Lock()
	defer p.fedMu.Unlock()
	p.authURL = authURL
	for _, client := range cfg.Clients {
		service.AddProvider(client.Name, client.ClientID, client.ClientSecret)
		p.federated[client.Name] = true
		p.logger.Info("federated provider enabled", "provider", client.Name)
	}

	return service
}

// SignInWithOAuth returns the login URL of an enabled federated provider.
// The browser comes back to RedirectTo once the login completes.
func (p *Provider) SignInWithOAuth(ctx context.Context, creds identity.OAuthCredentials) (*identity.OAuthResponse, error) {
	p.fedMu.RLock()
	enabled := p.federated[creds.Provider]
	authURL := p.authURL
	p.fedMu.RUnlock()

	if !enabled {
		return nil, identity.NewAuthError(http.StatusBadRequest, identity.CodeProviderDisabled,
			"Unsupported provider: provider is not enabled")
	}

	loginURL := fmt.Sprintf("%s/%s/login", authURL, url.PathEscape(creds.Provider))
	if creds.RedirectTo != "" {
		loginURL += "?from=" + url.QueryEscape(creds.RedirectTo)
	}

	p.logger.DebugContext(ctx, "federated sign-in started", "provider", creds.Provider)
	return &identity.OAuthResponse{Provider: creds.Provider, URL: loginURL}, nil
}

// CompleteFederatedSignIn finds or creates the local account of a federated
// identity and makes it the current session.
func (p *Provider) CompleteFederatedSignIn(ctx context.Context, fed FederatedIdentity) (*identity.Session, error) {
	user, err := p.db.GetUserByProviderIdentity(ctx, fed.Provider, fed.ProviderUserID)
	if errors.Is(err, db.ErrNotFound) {
		metadata := map[string]any{}
		if fed.Name != "" {
			metadata[identity.MetadataDisplayName] = fed.Name
		}
		if fed.Picture != "" {
			metadata["avatar_url"] = fed.Picture
		}

		user = db.NewUser(normalizeEmail(fed.Email), "", fed.Provider, metadata)
		user.ProviderUserID = fed.ProviderUserID
		if err = p.db.CreateUser(ctx, user); err != nil {
			if db.IsUniqueViolation(err) {
				return nil, errUserExists()
			}
			return nil, unexpected(err)
		}
		p.logger.InfoContext(ctx, "federated user created", "user_id", user.ID, "provider", fed.Provider)
	} else if err != nil {
		return nil, unexpected(err)
	}

	return p.startSession(ctx, user, identity.EventSignedIn)
}

// completeOAuth runs once per completed provider login
func (p *Provider) completeOAuth(claims token.Claims) token.Claims {
	if claims.User == nil {
		return claims
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fed := FederatedIdentity{
		Provider:       providerOf(claims.User.ID),
		ProviderUserID: claims.User.ID,
		Email:          claims.User.Email,
		Name:           claims.User.Name,
		Picture:        claims.User.Picture,
	}
	session, err := p.CompleteFederatedSignIn(ctx, fed)
	if err != nil {
		p.logger.Error("federated sign-in failed", "provider", fed.Provider, "error", err)
		return claims
	}

	claims.User.SetStrAttr("local_user_id", session.User.ID)
	return claims
}

// providerOf extracts the provider name from an id such as "github_3f2a..."
func providerOf(userID string) string {
	if i := strings.Index(userID, "_"); i > 0 {
		return userID[:i]
	}
	return userID
}
