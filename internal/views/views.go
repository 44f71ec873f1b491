// Package views builds the HTML template engine for fiber.
//
// Templates live under templates/ and are addressed by their path without
// the .html extension ("posts/index"). Every file is parsed into one set, so
// the blocks defined under partials/ are available to all pages. Layouts
// place the page with {{embed}}.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var embedded embed.FS

// Fragment is the page that prints an already rendered "Fragment" value, so
// cached output can be wrapped in a layout like any other page.
const Fragment = "fragment"

var _ fiber.Views = (*html.Engine)(nil)

// New returns an engine over the templates compiled into the binary.
func New() *html.Engine {
	sub, _ := fs.Sub(embedded, "templates")
	return NewFS(sub)
}

func NewFS(fsys fs.FS) *html.Engine {
	engine := html.NewFileSystem(http.FS(fsys), ".html")
	engine.AddFuncMap(Funcs())
	return engine
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"truncatewords": truncateWords,
		"date":          formatDate,
		"linebreaksbr":  lineBreaks,
	}
}

func truncateWords(n int, s string) string {
	words := strings.Fields(s)
	if n < 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + " …"
}

func formatDate(t time.Time) string {
	return t.Format("2 January 2006")
}

func lineBreaks(s string) template.HTML {
	escaped := template.HTMLEscapeString(strings.ReplaceAll(s, "\r\n", "\n"))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
