// Package httpapi is the engine's thin, read-only query surface over the
// synced funding-rate data. Grounded on sawpanic-cryptorun's
// internal/interfaces/http/server.go router/middleware shape, with the
// candidate-scoring handlers it serves replaced by history/online/health
// handlers against this engine's own persistence.Repository.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/SlavaKuntsov/hyper-quant-funding-rate-service/internal/persistence"
)

// Server is the local-only, read-only HTTP server.
type Server struct {
	router *mux.Router
	server *http.Server
	h      *handlers
	cfg    Config
}

// Config controls the listen address and request timeouts.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns the engine's out-of-the-box HTTP defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer builds the router and wraps it in an *http.Server, without
// binding a listener yet — that happens in Start. gatherer feeds /metrics;
// pass prometheus.DefaultGatherer in production.
func NewServer(cfg Config, repo *persistence.Repository, gatherer prometheus.Gatherer) *Server {
	router := mux.NewRouter()
	s := &Server{
		router: router,
		h:      newHandlers(repo),
		cfg:    cfg,
	}
	s.setupRoutes(gatherer)
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.NewRoute().Subrouter()
	api.Use(s.requestIDMiddleware)
	api.Use(s.loggingMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/healthz", s.h.Health).Methods(http.MethodGet)
	api.HandleFunc("/venues/{code}/history", s.h.History).Methods(http.MethodGet)
	api.HandleFunc("/venues/{code}/online", s.h.Online).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.h.NotFound)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		log.Info().
			Str("request_id", fmt.Sprint(r.Context().Value(requestIDKey{}))).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.status).
			Dur("duration", time.Since(start)).
			Msg("httpapi: request")
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Msg("httpapi: listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
