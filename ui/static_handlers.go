package ui

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// handleRoot sends visitors to the dashboard index
func (s *Server) handleRoot(c *gin.Context) {
	c.Redirect(http.StatusFound, "/lab/index.html")
}

// handleLab serves dashboard files, assets included, from the tools directory
func (s *Server) handleLab(c *gin.Context) {
	full, ok := resolveWithin(s.options.ToolsDir, c.Param("path"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "File not found"})
		return
	}
	f, err := os.Open(full)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "File not found"})
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "File not found"})
		return
	}
	// ServeContent, unlike c.File, does not redirect */index.html
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// resolveWithin joins a URL path onto dir and refuses anything that escapes it
func resolveWithin(dir, urlPath string) (string, bool) {
	if dir == "" || strings.Contains(urlPath, "\x00") {
		return "", false
	}
	cleaned := path.Clean("/" + urlPath)
	if cleaned == "/" {
		return "", false
	}
	full := filepath.Join(dir, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(dir, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return full, true
}
