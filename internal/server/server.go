package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"holoexport/internal/config"
	"holoexport/internal/deps"
	"holoexport/internal/export"
	"holoexport/internal/jobs"
	"holoexport/internal/logging"
)

// Server hosts the export HTTP API.
type Server struct {
	bind       string
	logger     *slog.Logger
	controller *jobs.Controller
	registry   *export.Registry
	locator    *deps.Locator
	store      *jobs.Store

	listener net.Listener
	server   *http.Server
}

func New(cfg *config.Config, controller *jobs.Controller, registry *export.Registry, locator *deps.Locator, store *jobs.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is not configured")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	srv := &Server{
		bind:       bind,
		logger:     logging.NewComponentLogger(logger, "api-server"),
		controller: controller,
		registry:   registry,
		locator:    locator,
		store:      store,
	}

	router := mux.NewRouter()
	router.Use(metricsMiddleware)
	router.HandleFunc("/api/export/convert", srv.handleConvert).Methods(http.MethodPost)
	router.HandleFunc("/api/export/status/{id}", srv.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/export/download/{id}", srv.handleDownload).Methods(http.MethodGet)
	router.HandleFunc("/api/export/capabilities", srv.handleCapabilities).Methods(http.MethodGet)
	router.HandleFunc("/api/export/history", srv.handleHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/export/stats", srv.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/api/export/jobs/{id}", srv.handleCancel).Methods(http.MethodDelete)
	router.HandleFunc("/api/health/ffmpeg", srv.handleEncoderHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	srv.server = &http.Server{
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the configured handler chain for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving and shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}
