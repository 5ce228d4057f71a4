// Package web serves the static front end that drives the generation API.
//
// Requests for files below the root are served as-is. Paths without an extension fall back to
// index.html so client-side routes load the app; unknown API paths and missing assets are 404.
package web

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/animx/internal/shared"
	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// Site is a directory of static assets with an index page.
type Site struct {
	root string
}

// New opens dir, which must contain index.html.
func New(dir string) (*Site, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: static dir %q: %v", shared.ErrInvalidConfig, dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: static dir %q is not a directory", shared.ErrInvalidConfig, dir)
	}
	if _, err := os.Stat(filepath.Join(abs, indexFile)); err != nil {
		return nil, fmt.Errorf("%w: %s missing in %q", shared.ErrInvalidConfig, indexFile, dir)
	}

	return &Site{root: abs}, nil
}

// Root returns the absolute directory served.
func (s *Site) Root() string { return s.root }

// Serve is a gin fallback handler.
func (s *Site) Serve(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
		return
	}

	clean := path.Clean("/" + c.Request.URL.Path)
	if strings.HasPrefix(clean, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Not found"})
		return
	}

	if name, ok := s.resolve(clean); ok {
		c.File(name)
		return
	}

	if path.Ext(clean) != "" {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(filepath.Join(s.root, indexFile))
}

// resolve maps a cleaned URL path to a regular file under root.
func (s *Site) resolve(clean string) (string, bool) {
	if clean == "/" {
		return filepath.Join(s.root, indexFile), true
	}

	name := filepath.Join(s.root, filepath.FromSlash(clean))
	if !strings.HasPrefix(name, s.root+string(filepath.Separator)) {
		return "", false
	}

	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return "", false
	}
	return name, true
}
