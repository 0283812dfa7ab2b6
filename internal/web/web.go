// Package web holds the HTML templates for the public pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Templates parses every embedded page. Pages are looked up by file name, e.g. "index.html".
func Templates() (*template.Template, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"plural": plural,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return t, nil
}

// NotFound renders the 404 page.
func NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", gin.H{"path": c.Request.URL.Path})
}

// ServerError renders the 500 page.
func ServerError(c *gin.Context) {
	c.HTML(http.StatusInternalServerError, "500.html", nil)
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}
