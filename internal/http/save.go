package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/persist"
)

// save writes the request body, pretty-printed, to the save file
func (s *Server) save(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "failed to read save body", "error", err)
		c.String(http.StatusInternalServerError, "Failed to save")
		return
	}

	if err := s.saver.Save(body); err != nil {
		if errors.Is(err, persist.ErrInvalidJSON) {
			c.String(http.StatusBadRequest, "Invalid JSON")
			return
		}
		s.logger.ErrorContext(c.Request.Context(), "failed to save document", "error", err)
		c.String(http.StatusInternalServerError, "Failed to save")
		return
	}

	c.String(http.StatusOK, "Saved!")
}
