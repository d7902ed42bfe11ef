package local

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/workbench/internal/db"
	"github.com/workbench/internal/identity"
)

// ResetPasswordForEmail mails a single-use recovery link pointing at
// redirectTo. Unknown addresses are not reported so callers cannot probe for
// accounts.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	user, err := p.db.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			p.logger.DebugContext(ctx, "password recovery for unknown address ignored")
			return nil
		}
		return unexpected(err)
	}

	token := db.NewRecoveryToken(user.ID, recoveryTokenTTL)
	if err := p.db.CreateRecoveryToken(ctx, token); err != nil {
		return unexpected(err)
	}

	if err := p.mailer.SendRecovery(ctx, user.Email, recoveryLink(redirectTo, token.Token)); err != nil {
		return unexpected(fmt.Errorf("send recovery mail: %w", err))
	}

	p.logger.InfoContext(ctx, "password recovery mail sent", "user_id", user.ID)
	return nil
}

// VerifyRecovery redeems a recovery token and signs its owner in, reporting
// PASSWORD_RECOVERY.
func (p *Provider) VerifyRecovery(ctx context.Context, token string) (*identity.AuthResponse, error) {
	userID, err := p.db.ConsumeRecoveryToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, identity.NewAuthError(http.StatusForbidden, identity.CodeOTPExpired, "Email link is invalid or has expired")
		}
		return nil, unexpected(err)
	}

	user, err := p.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, unexpected(err)
	}

	session, err := p.startSession(ctx, user, identity.EventPasswordRecovery)
	if err != nil {
		return nil, err
	}
	return &identity.AuthResponse{User: session.User, Session: session}, nil
}

// UpdatePassword sets a new password for the signed-in user and reports
// USER_UPDATED.
func (p *Provider) UpdatePassword(ctx context.Context, password string) (*identity.User, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()

	if current == nil || current.User == nil {
		return nil, errSessionMissing()
	}
	if len(password) < minPasswordLength {
		return nil, identity.NewAuthError(http.StatusUnprocessableEntity, identity.CodeWeakPassword,
			fmt.Sprintf("Password should be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, unexpected(err)
	}
	if err := p.db.UpdateUserPassword(ctx, current.User.ID, string(hash)); err != nil {
		return nil, unexpected(err)
	}

	p.mu.Lock()
	if p.current == current {
		p.bus.publish(identity.EventUserUpdated, current)
	}
	p.mu.Unlock()
	return current.User, nil
}

func recoveryLink(redirectTo, token string) string {
	sep := "?"
	if strings.Contains(redirectTo, "?") {
		sep = "&"
	}
	return redirectTo + sep + "token=" + url.QueryEscape(token)
}
