package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-pkgz/auth"

	"github.com/workbench/internal/config"
	"github.com/workbench/internal/constants"
	"github.com/workbench/internal/dom"
	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/session"
)

// PageRenderer renders documents with the cached auth state and guards
// protected pages
type PageRenderer interface {
	Render(doc session.Document)
	RequireAuth(nav session.Navigator) bool
}

// Dependencies are the services the server exposes
type Dependencies struct {
	Sessions domain.SessionService
	Pages    PageRenderer
	Saver    domain.DocumentSaver

	// Optional
	Recovery domain.RecoveryService
	Shell    *dom.Document
	Auth     *auth.Service
	Logger   *slog.Logger
}

// Server wraps the HTTP server
type Server struct {
	config      *config.Config
	sessions    domain.SessionService
	pages       PageRenderer
	saver       domain.DocumentSaver
	recovery    domain.RecoveryService
	shell       *dom.Document
	authService *auth.Service
	logger      *slog.Logger
	engine      *gin.Engine
	httpServer  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	// Set Gin mode based on environment
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	// Middleware - order matters
	engine.Use(securityHeadersMiddleware())
	engine.Use(corsMiddleware(cfg))
	engine.Use(cacheControlMiddleware())
	engine.Use(loggerMiddleware(logger))
	engine.Use(jsonBodyLimitMiddleware(constants.MaxJSONBodySize))

	server := &Server{
		config:      cfg,
		sessions:    deps.Sessions,
		pages:       deps.Pages,
		saver:       deps.Saver,
		recovery:    deps.Recovery,
		shell:       deps.Shell,
		authService: deps.Auth,
		logger:      logger,
		engine:      engine,
	}

	server.setupRoutes()

	addr := cfg.ServerAddress
	if addr == "" {
		addr = ":3001"
	}

	// Configure server with timeouts
	server.httpServer = &http.Server{
		Addr:           addr,
		Handler:        engine,
		ReadTimeout:    constants.ServerReadTimeout,
		WriteTimeout:   constants.ServerWriteTimeout,
		IdleTimeout:    constants.ServerIdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	return server
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
