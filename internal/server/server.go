package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lazypower/mnemo/internal/engine"
)

// Options carries request defaults taken from configuration.
type Options struct {
	Version    string
	TopK       int // search results when top_k is not given
	MaxRecords int // prune cap when max_records is not given
}

// Server is the mnemo HTTP API server.
type Server struct {
	eng     *engine.Engine
	opts    Options
	log     *slog.Logger
	router  chi.Router
	started time.Time

	// mu serializes commands; each one is a full load-modify-save of the store.
	mu sync.Mutex
}

// New creates a new Server for the given engine.
func New(eng *engine.Engine, opts Options) *Server {
	if opts.TopK < 1 {
		opts.TopK = 5
	}
	s := &Server{
		eng:     eng,
		opts:    opts,
		log:     eng.Log,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleRemember)
		r.Get("/memories", s.handleList)
		r.Delete("/memories", s.handleForget)
		r.Post("/prune", s.handlePrune)
		r.Get("/search", s.handleSearch)
	})

	s.router = r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.opts.Version,
		"uptime":    time.Since(s.started).Seconds(),
		"memory":    s.eng.Path,
		"embedding": s.eng.Backend.Name(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps engine input errors to 4xx and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrEmptyText),
		errors.Is(err, engine.ErrInvalidImportance),
		errors.Is(err, engine.ErrInvalidTTL),
		errors.Is(err, engine.ErrInvalidBoundary),
		errors.Is(err, engine.ErrNoSelector),
		errors.Is(err, engine.ErrInvalidTopK):
		status = http.StatusBadRequest
	default:
		s.log.Error("request failed", "err", err)
	}
	writeErrorMsg(w, status, err.Error())
}
