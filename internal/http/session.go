package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/httputil"
)

// getCurrentUser re-reads the session from the provider
func (s *Server) getCurrentUser(c *gin.Context) {
	user, err := s.sessions.GetCurrentUser(c.Request.Context())
	if err != nil {
		s.respondError(c, "get current user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// signUp registers an account. The response reports the request outcome;
// the session change is published on the event stream.
func (s *Server) signUp(c *gin.Context) {
	var req domain.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.WarnContext(c.Request.Context(), "invalid sign-up request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	resp, err := s.sessions.SignUp(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.respondError(c, "sign up", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// signIn signs in with e-mail and password
func (s *Server) signIn(c *gin.Context) {
	var req domain.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.WarnContext(c.Request.Context(), "invalid sign-in request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	resp, err := s.sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, "sign in", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// signInWithProvider redirects the browser to the federated login page, or
// returns its URL when JSON is requested
func (s *Server) signInWithProvider(c *gin.Context) {
	provider, err := httputil.ProviderParam(c)
	if err != nil {
		s.respondError(c, "federated sign in", err)
		return
	}

	resp, err := s.sessions.SignInWithProvider(c.Request.Context(), provider.String())
	if err != nil {
		s.respondError(c, "federated sign in", err)
		return
	}

	if httputil.WantsJSON(c) {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.Redirect(http.StatusFound, resp.URL)
}

// signOut ends the current session
func (s *Server) signOut(c *gin.Context) {
	if err := s.sessions.SignOut(c.Request.Context()); err != nil {
		s.respondError(c, "sign out", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// resetPassword sends a recovery e-mail
func (s *Server) resetPassword(c *gin.Context) {
	var req domain.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.WarnContext(c.Request.Context(), "invalid reset password request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	if err := s.sessions.ResetPassword(c.Request.Context(), req.Email); err != nil {
		s.respondError(c, "reset password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the address is registered, a recovery link is on its way"})
}

// recoverSession redeems a recovery token from a reset link
func (s *Server) recoverSession(c *gin.Context) {
	var req domain.RecoverRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	resp, err := s.recovery.VerifyRecovery(c.Request.Context(), req.Token)
	if err != nil {
		s.respondError(c, "recover", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// updatePassword sets a new password for the signed-in user
func (s *Server) updatePassword(c *gin.Context) {
	var req domain.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	user, err := s.recovery.UpdatePassword(c.Request.Context(), req.Password)
	if err != nil {
		s.respondError(c, "update password", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
