package jobs

import (
	"context"
	"log/slog"
)

// Purger deletes expired sessions and recovery tokens
type Purger interface {
	PurgeExpired(ctx context.Context) (sessions int64, tokens int64, err error)
}

// PurgeHandler removes expired login state
type PurgeHandler struct {
	purger Purger
	logger *slog.Logger
}

// NewPurgeHandler creates a new purge handler
func NewPurgeHandler(purger Purger, logger *slog.Logger) *PurgeHandler {
	return &PurgeHandler{purger: purger, logger: logger}
}

// Handle runs one purge
func (h *PurgeHandler) Handle(ctx context.Context) error {
	sessions, tokens, err := h.purger.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	if sessions > 0 || tokens > 0 {
		h.logger.InfoContext(ctx, "purged expired rows", "sessions", sessions, "recovery_tokens", tokens)
	}
	return nil
}
