package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/identity"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error to an HTTP status. Provider errors keep the status
// the provider reported.
func statusFor(err error) int {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 600 {
		return authErr.Status
	}

	switch domain.KindOf(err) {
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindInvalidCredentials, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON, logging server-side failures
func (s *Server) respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), op+" failed", "error", err)
	} else {
		s.logger.WarnContext(c.Request.Context(), op+" rejected", "error", err, "kind", domain.KindOf(err).String())
	}

	c.JSON(status, ErrorResponse{
		Error: domain.PublicMessage(err),
		Code:  identity.CodeOf(err),
	})
}
