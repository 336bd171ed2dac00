// Package web exposes bins over HTTP: a JSON API for creating and
// inspecting bins, live capture streams, and the capture endpoint itself.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"requestbin/internal/events"
	"requestbin/internal/storage"
)

const (
	replayTimeout = 30 * time.Second

	// DefaultMaxBodySize caps the body of a captured request.
	DefaultMaxBodySize int64 = 1 << 20
)

type Server struct {
	store       storage.Storage
	broker      *events.Broker
	logger      *slog.Logger
	client      *http.Client
	router      chi.Router
	maxBodySize int64
}

type Option func(*Server)

// WithMaxBodySize caps captured request bodies at n bytes. Zero or less
// disables the limit.
func WithMaxBodySize(n int64) Option {
	return func(s *Server) { s.maxBodySize = n }
}

func NewServer(store storage.Storage, broker *events.Broker, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		store:       store,
		broker:      broker,
		logger:      logger,
		client:      &http.Client{Timeout: replayTimeout},
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Capture routes stay outside CORS so preflight requests are recorded.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", secretHeader},
			ExposedHeaders:   []string{requestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
		r.Get("/stats", s.handleStats)
		r.Post("/bins", s.handleCreateBin)
		r.Route("/bins/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetBin)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAccess)
				r.Get("/requests", s.handleListRequests)
				r.Get("/requests/{id}", s.handleGetRequest)
				r.Get("/requests/{id}/curl", s.handleCurl)
				r.Post("/requests/{id}/replay", s.handleReplay)
				r.Get("/har", s.handleExportHAR)
				r.Get("/events", s.handleEvents)
				r.Get("/ws", s.handleWebsocket)
			})
		})
	})

	r.HandleFunc("/{name}", s.handleCapture)
	r.HandleFunc("/{name}/*", s.handleCapture)
	return r
}
