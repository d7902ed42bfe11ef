package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/constants"
	"github.com/workbench/internal/identity"
)

// authEvent is one server-sent auth-state change
type authEvent struct {
	Event identity.Event `json:"event"`
	User  *identity.User `json:"user"`
}

// streamEvents relays auth-state changes as server-sent events until the
// client disconnects
func (s *Server) streamEvents(c *gin.Context) {
	ctx := c.Request.Context()

	// The stream outlives the server's write timeout.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.DebugContext(ctx, "cannot clear write deadline for event stream", "error", err)
	}

	events := make(chan authEvent, 16)
	sub := s.sessions.OnAuthStateChange(func(event identity.Event, session *identity.Session) {
		select {
		case events <- authEvent{Event: event, User: identity.SessionUser(session)}:
		default:
			s.logger.Warn("event stream client too slow, dropping event", "event", event)
		}
	})
	defer sub.Unsubscribe()

	s.logger.DebugContext(ctx, "event stream opened")

	// current state first so clients need no separate fetch
	c.SSEvent(constants.SSEEventAuth, authEvent{Event: identity.EventInitialSession, User: s.sessions.CurrentUser()})
	c.Writer.Flush()

	keepAlive := time.NewTicker(constants.SSEKeepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent(constants.SSEEventAuth, e)
			return true
		case <-keepAlive.C:
			c.SSEvent(constants.SSEEventPing, time.Now().Unix())
			return true
		}
	})

	s.logger.DebugContext(ctx, "event stream closed")
}
