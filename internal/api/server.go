package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docview/internal/assets"
	"github.com/dgallion1/docview/internal/config"
	"github.com/dgallion1/docview/internal/viewer"
)

// Server is the local preview server for one viewer session.
type Server struct {
	router   chi.Router
	session  *viewer.Session
	gatherer prometheus.Gatherer
	log      *slog.Logger
	cfg      *config.Config
}

// NewServer creates and configures the HTTP server. A nil gatherer disables
// /metrics.
func NewServer(session *viewer.Session, gatherer prometheus.Gatherer, log *slog.Logger, cfg *config.Config) *Server {
	s := &Server{
		session:  session,
		gatherer: gatherer,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	// Page and static assets.
	r.Get("/", s.handlePage)
	r.Get("/index.html", s.handlePage)
	r.Get("/manifest.json", s.handleManifest)
	r.Get(assets.ViewerPath, s.handleViewerCSS)
	r.Get("/assets/highlight-{theme}.css", s.handleHighlightCSS)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Session actions.
	r.Route("/api", func(r chi.Router) {
		r.Use(NoStore)
		r.Get("/state", s.handleState)
		r.Get("/content", s.handleContent)
		r.Get("/outline", s.handleOutline)
		r.Post("/search", s.handleSearch)
		r.Post("/next", s.handleNext)
		r.Post("/clear", s.handleClear)
		r.Post("/theme/toggle", s.handleToggleTheme)
		r.Post("/theme/{name}", s.handleSetTheme)
		r.Post("/reload", s.handleReload)
		r.Post("/copy/{index}", s.handleCopy)
		r.Get("/print", s.handlePrint)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
