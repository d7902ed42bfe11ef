package constants

import "time"

// Job names
const (
	JobSessionRefresh = "session_refresh"
	JobPurgeExpired   = "purge_expired"
)

// Server-sent event names
const (
	SSEEventAuth = "auth"
	SSEEventPing = "ping"
)

// Timeout and interval constants
const (
	// ServerReadTimeout is the HTTP server read timeout
	ServerReadTimeout = 30 * time.Second

	// ServerWriteTimeout is the HTTP server write timeout. The event stream
	// route clears it per connection.
	ServerWriteTimeout = 60 * time.Second

	// ServerIdleTimeout is the HTTP server idle timeout
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout bounds graceful shutdown of the HTTP server
	ServerShutdownTimeout = 10 * time.Second

	// SSEKeepAliveInterval is how often idle event streams are pinged
	SSEKeepAliveInterval = 25 * time.Second

	// JobTimeout bounds a single job run
	JobTimeout = 30 * time.Second

	// JobGracefulShutdownTimeout is how long to wait for running jobs during shutdown
	JobGracefulShutdownTimeout = 30 * time.Second

	// SessionInitTimeout bounds the initial session load at startup
	SessionInitTimeout = 5 * time.Second
)

// Request limits
const (
	// MaxJSONBodySize applies to the session and profile API. The save route
	// is not limited.
	MaxJSONBodySize = 1 << 20
)
