package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/users"
)

//go:embed templates/*
var templateFiles embed.FS

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout.
func ParseTemplate(name string) (*template.Template, error) {
	return template.ParseFS(TemplateFilesFS(), "layout.html", name)
}

func mustParseTemplate(name string) *template.Template {
	tmpl, err := ParseTemplate(name)
	if err != nil {
		panic("Failed to parse " + name + " template: " + err.Error())
	}
	return tmpl
}

type pageData struct {
	Title       string
	AppName     string
	Error       string
	Next        string
	Section     string
	OIDCEnabled bool
	User        *users.User
}

// renderPage executes into a buffer first so a template error never leaves a
// half written page.
func (s *Server) renderPage(w http.ResponseWriter, tmpl *template.Template, status int, data pageData) {
	data.AppName = s.config.GetAppName()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("template", tmpl.Name()).Msg("failed to render page")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
