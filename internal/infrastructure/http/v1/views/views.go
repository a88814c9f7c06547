// Package views holds the server-rendered admin pages.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/session"
)

//go:embed templates/*.html static
var files embed.FS

// Page is the data every template receives. Body holds the page-specific
// view model.
type Page struct {
	Title     string
	Lang      lang.Language
	Languages []lang.Language
	LoggedIn  bool
	Nav       []NavLink
	Flash     *session.Flash
	RequestID string
	Path      string
	Body      any
}

// NavLink is one entry of the side menu.
type NavLink struct {
	Href   string
	Label  string
	Active bool
}

// ErrorBody is rendered by error.html.
type ErrorBody struct {
	Status  int
	Code    string
	Message string
}

var funcs = template.FuncMap{
	"upper": func(l lang.Language) string { return strings.ToUpper(l.String()) },
	"join":  strings.Join,
}

// Load parses the embedded templates.
func Load() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(files, "templates/*.html")
}

// MustLoad is Load for process startup.
func MustLoad() *template.Template {
	return template.Must(Load())
}

// Static serves the embedded stylesheet.
func Static() http.FileSystem {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
