package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/workbench/internal/identity"
)

// SessionRefresher is implemented by providers that can renew their session
type SessionRefresher interface {
	ExpiresWithin(d time.Duration) bool
	RefreshSession(ctx context.Context) (*identity.Session, error)
}

// SessionRefreshHandler renews the current session shortly before its
// access token expires
type SessionRefreshHandler struct {
	refresher SessionRefresher
	window    time.Duration
	logger    *slog.Logger
}

// NewSessionRefreshHandler creates a new session refresh handler
func NewSessionRefreshHandler(refresher SessionRefresher, window time.Duration, logger *slog.Logger) *SessionRefreshHandler {
	return &SessionRefreshHandler{
		refresher: refresher,
		window:    window,
		logger:    logger,
	}
}

// Handle refreshes the session when it expires within the window
func (h *SessionRefreshHandler) Handle(ctx context.Context) error {
	if !h.refresher.ExpiresWithin(h.window) {
		return nil
	}

	session, err := h.refresher.RefreshSession(ctx)
	if err != nil {
		if identity.CodeOf(err) == identity.CodeSessionNotFound {
			// signed out between the check and the refresh
			return nil
		}
		return err
	}

	h.logger.InfoContext(ctx, "session refreshed", "expires_at", session.ExpiresAt)
	return nil
}
