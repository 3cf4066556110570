package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docview/internal/assets"
	"github.com/dgallion1/docview/internal/theme"
)

// manifest is the installable page manifest.
type manifest struct {
	Name            string `json:"name"`
	ShortName       string `json:"short_name"`
	StartURL        string `json:"start_url"`
	Display         string `json:"display"`
	BackgroundColor string `json:"background_color"`
	ThemeColor      string `json:"theme_color"`
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(s.session.PageHTML()))
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/manifest+json")
	json.NewEncoder(w).Encode(manifest{
		Name:            "docview",
		ShortName:       "docview",
		StartURL:        "/",
		Display:         "standalone",
		BackgroundColor: "#0d1117",
		ThemeColor:      "#0d1117",
	})
}

func (s *Server) handleViewerCSS(w http.ResponseWriter, r *http.Request) {
	data, err := assets.ViewerCSS()
	if err != nil {
		jsonError(w, "stylesheet missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	name, err := theme.Parse(chi.URLParam(r, "theme"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	data, err := assets.HighlightCSS(name)
	if err != nil {
		s.log.Error("write highlight css", "theme", name, "error", err)
		jsonError(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(data)
}
