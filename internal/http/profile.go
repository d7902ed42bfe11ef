package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getProfile returns the signed-in user's profile, or null
func (s *Server) getProfile(c *gin.Context) {
	profile, err := s.sessions.GetUserProfile(c.Request.Context())
	if err != nil {
		s.respondError(c, "get profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// updateProfile upserts the signed-in user's profile
func (s *Server) updateProfile(c *gin.Context) {
	var updates map[string]any
	if err := c.ShouldBindJSON(&updates); err != nil {
		s.logger.WarnContext(c.Request.Context(), "invalid profile update", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request format"})
		return
	}

	if err := s.sessions.UpdateProfile(c.Request.Context(), updates); err != nil {
		s.respondError(c, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}
