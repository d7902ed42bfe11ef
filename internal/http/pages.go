package http

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workbench/internal/apipaths"
	"github.com/workbench/internal/dom"
	"github.com/workbench/internal/domain"
	"github.com/workbench/internal/httputil"
)

const htmlContentType = "text/html; charset=utf-8"

// redirectNavigator turns navigations into HTTP redirects to rendered pages
type redirectNavigator struct {
	c *gin.Context
}

func (n redirectNavigator) Navigate(path string) {
	target := path
	if !strings.HasPrefix(path, "/") && !strings.Contains(path, "://") {
		target = apipaths.Page(path)
	}
	n.c.Redirect(http.StatusFound, target)
}

// getShell renders the shell document, which is kept in sync with the auth
// state as events arrive
func (s *Server) getShell(c *gin.Context) {
	if s.shell == nil {
		c.Redirect(http.StatusFound, apipaths.Page("index.html"))
		return
	}
	c.Data(http.StatusOK, htmlContentType, []byte(s.shell.String()))
}

// getPage renders a page from the pages directory with the current auth
// state. Protected pages redirect to the login page when nobody is signed in.
func (s *Server) getPage(c *gin.Context) {
	name, err := httputil.PageNameParam(c)
	if err != nil {
		s.respondError(c, "render page", err)
		return
	}

	if s.isProtected(name.String()) && !s.pages.RequireAuth(redirectNavigator{c: c}) {
		return
	}

	doc, err := dom.ParseFile(filepath.Join(s.config.Pages.Dir, name.String()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.respondError(c, "render page", domain.ErrPageNotFound)
			return
		}
		s.respondError(c, "render page", domain.WrapFileSystem("read page", err))
		return
	}

	s.pages.Render(doc)
	c.Data(http.StatusOK, htmlContentType, []byte(doc.String()))
}

func (s *Server) isProtected(name string) bool {
	for _, p := range s.config.Pages.ProtectedPages {
		if p == name {
			return true
		}
	}
	return false
}
