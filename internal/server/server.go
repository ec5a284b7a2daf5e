// Package server provides the HTTP server of the inventory health service.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/starlingx/metal-sub001/internal/config"
	apierrors "github.com/starlingx/metal-sub001/internal/errors"
	"github.com/starlingx/metal-sub001/internal/handler"
	"github.com/starlingx/metal-sub001/internal/metrics"
	"github.com/starlingx/metal-sub001/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	probes       *handler.Probes
	metrics      *metrics.Metrics
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server. m may be nil to disable request metrics.
func NewServer(
	cfg *config.Config,
	handlers *handler.Handlers,
	probes *handler.Probes,
	errorHandler *apierrors.Handler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	s := &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		probes:       probes,
		metrics:      m,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.errorHandler, s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}
	if s.metrics != nil {
		middlewareChain = append(middlewareChain, metrics.MetricsMiddleware(s.metrics))
	}
	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.errorHandler,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}
	if s.cfg.Server.WriteTimeout > 0 {
		middlewareChain = append(middlewareChain, middleware.Timeout(s.cfg.Server.WriteTimeout))
	}
	middlewareChain = append(middlewareChain, middleware.AuthToken)

	s.router.Use(middleware.Chain(middlewareChain...))

	s.router.HandleFunc("/health", s.probes.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.probes.ReadinessHandler).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/health/system", s.handlers.SystemHealth).Methods(http.MethodGet)
	v1.HandleFunc("/health/upgrade", s.handlers.UpgradeHealth).Methods(http.MethodGet)
	v1.HandleFunc("/health/last", s.handlers.LastVerdict).Methods(http.MethodGet)
	v1.HandleFunc("/health/hosts/{hostname}/lock", s.handlers.LockHealth).Methods(http.MethodGet)

	v1.HandleFunc("/ceph/monitors", s.handlers.CephMonitors).Methods(http.MethodGet)
	v1.HandleFunc("/ceph/hosts/{hostname}/osd-status", s.handlers.HostOSDStatus).Methods(http.MethodGet)

	v1.HandleFunc("/hosts/{hostname}/lock", s.handlers.LockHost).Methods(http.MethodPost)
	v1.HandleFunc("/hosts/{hostname}/unlock", s.handlers.UnlockHost).Methods(http.MethodPost)
	v1.HandleFunc("/hosts/{hostname}/servicenode", s.handlers.ServiceNode).Methods(http.MethodGet)
	v1.HandleFunc("/hosts/{uuid}/forget", s.handlers.ForgetHost).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.ErrorCodeInvalidRequest,
			"endpoint not found", r.Header.Get(middleware.RequestIDHeader))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.ErrorCodeInvalidRequest,
			"method not allowed", r.Header.Get(middleware.RequestIDHeader))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}
