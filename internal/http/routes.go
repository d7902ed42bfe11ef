package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/apipaths"
	"github.com/workbench/internal/session"
)

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Mount federated login routes (login, callbacks, logout)
	// go-pkgz/auth expects paths relative to mount point, so we strip /auth prefix
	if s.authService != nil {
		authHandler, avatarHandler := s.authService.Handlers()
		if authHandler != nil {
			s.engine.Any(apipaths.AuthMount+"/*path", wrapAuthHandler(authHandler, apipaths.AuthMount))
		}
		if avatarHandler != nil {
			s.engine.Any("/avatar/*path", wrapAuthHandler(avatarHandler, "/avatar"))
		}
	}

	// Health check endpoint
	s.engine.GET(apipaths.Health, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "workbench",
		})
	})

	// Persistence route - open to any origin, no auth
	s.engine.POST(apipaths.Save, s.save)

	s.setupSessionRoutes()

	s.engine.GET(apipaths.Profile, s.getProfile)
	s.engine.PUT(apipaths.Profile, s.updateProfile)

	// Rendered pages
	s.engine.GET("/", s.getShell)
	s.engine.GET(apipaths.PagesMount+"/:name", s.getPage)

	// Recovery links point at the site root
	s.engine.GET(session.ResetPasswordPath, func(c *gin.Context) {
		target := apipaths.Page(strings.TrimPrefix(session.ResetPasswordPath, "/"))
		if c.Request.URL.RawQuery != "" {
			target += "?" + c.Request.URL.RawQuery
		}
		c.Redirect(http.StatusFound, target)
	})
}

func (s *Server) setupSessionRoutes() {
	s.engine.GET(apipaths.SessionUser, s.getCurrentUser)
	s.engine.POST(apipaths.SignUp, s.signUp)
	s.engine.POST(apipaths.SignIn, s.signIn)
	s.engine.GET(apipaths.SignIn+"/:provider", s.signInWithProvider)
	s.engine.POST(apipaths.SignOut, s.signOut)
	s.engine.POST(apipaths.ResetPassword, s.resetPassword)
	s.engine.GET(apipaths.SessionEvents, s.streamEvents)

	if s.recovery != nil {
		s.engine.POST(apipaths.Recover, s.recoverSession)
		s.engine.PUT(apipaths.Password, s.updatePassword)
	}
}

// wrapAuthHandler wraps an http.Handler for use with Gin, stripping the prefix
// go-pkgz/auth expects paths relative to where it's mounted
func wrapAuthHandler(handler http.Handler, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		originalPath := c.Request.URL.Path
		c.Request.URL.Path = strings.TrimPrefix(originalPath, prefix)

		handler.ServeHTTP(c.Writer, c.Request)

		c.Request.URL.Path = originalPath
	}
}
