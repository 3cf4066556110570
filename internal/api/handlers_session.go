package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docview/internal/clipboard"
	"github.com/dgallion1/docview/internal/theme"
	"github.com/dgallion1/docview/internal/viewer"
)

type searchRequest struct {
	Query string `json:"query"`
	// Debounce schedules the search like a keystroke instead of running it
	// immediately.
	Debounce bool `json:"debounce"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(s.session.ContentHTML()))
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	o, err := s.session.Outline()
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Debounce {
		s.session.Search(req.Query)
		writeJSON(w, http.StatusAccepted, s.session.Snapshot())
		return
	}
	if err := s.session.SearchNow(req.Query); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.session.Next()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Clear(); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.ToggleTheme(); err != nil {
		// The page already switched; only persistence failed.
		s.log.Warn("toggle theme", "error", err)
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	name, err := theme.Parse(chi.URLParam(r, "name"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.session.ApplyTheme(name); err != nil {
		s.log.Warn("set theme", "theme", name, "error", err)
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Load(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleCopy(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	if err := s.session.Copy(index); err != nil {
		if errors.Is(err, clipboard.ErrNotControl) {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="document.html"`)
	if err := s.session.Print(r.Context(), w); err != nil {
		s.log.Error("print page", "error", err)
	}
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, viewer.ErrNoDocument) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
