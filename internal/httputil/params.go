package httputil

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/domain"
)

// PageNameParam validates and returns the page name from the URL parameter
func PageNameParam(c *gin.Context) (*domain.PageName, error) {
	return domain.NewPageName(strings.TrimPrefix(c.Param("name"), "/"))
}

// ProviderParam validates and returns the provider name from the URL parameter
func ProviderParam(c *gin.Context) (*domain.ProviderName, error) {
	return domain.NewProviderName(strings.ToLower(c.Param("provider")))
}

// WantsJSON reports whether the client asked for a JSON response rather than
// a redirect
func WantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
