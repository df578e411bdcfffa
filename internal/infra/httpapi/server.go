package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dsacoach/internal/logging"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr      string
	JWTSecret string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server wraps http.Server with the service routes.
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

// NewRouter builds the route tree: /healthz and /metrics are public, /api is
// protected when a JWT secret is configured.
func NewRouter(cfg ServerConfig, handler *Handler, logger logging.Logger) *mux.Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(LoggingMiddleware(logger)))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	if cfg.JWTSecret != "" {
		api.Use(mux.MiddlewareFunc(JWTMiddleware([]byte(cfg.JWTSecret))))
	}
	handler.RegisterRoutes(api)

	return router
}

// NewServer creates the server with conservative timeouts; the write timeout
// covers a provider round trip plus a sandbox run.
func NewServer(cfg ServerConfig, handler *Handler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(cfg, handler, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
