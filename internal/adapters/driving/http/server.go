// Package http provides the REST API for docqa.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var (
	// ErrMissingDocumentService is returned when the document service is not provided.
	ErrMissingDocumentService = errors.New("http: document service is required")

	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("http: query service is required")
)

// Ports are the core services served over HTTP. Health is optional.
type Ports struct {
	Documents driving.DocumentService
	Query     driving.QueryService
	Health    driving.HealthService
}

// Server provides HTTP endpoints for docqa.
type Server struct {
	echo   *echo.Echo
	ports  Ports
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes caps the request body of an upload. Zero disables the cap.
	MaxUploadBytes int64
}

// NewServer creates a new HTTP server.
func NewServer(ports Ports, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ports.Documents == nil {
		return nil, ErrMissingDocumentService
	}
	if ports.Query == nil {
		return nil, ErrMissingQueryService
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Resolve the status before logging it.
				c.Error(err)
			}
			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(status)).Inc()
			requestDuration.WithLabelValues(c.Request().Method, c.Path()).Observe(duration.Seconds())

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return nil
		}
	})

	s := &Server{
		echo:   e,
		ports:  ports,
		logger: logger,
		config: cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	upload := []echo.MiddlewareFunc{}
	if s.config.MaxUploadBytes > 0 {
		// Leave room for the multipart envelope; the service enforces the exact limit.
		limit := s.config.MaxUploadBytes + 1<<20
		upload = append(upload, middleware.BodyLimit(strconv.FormatInt(limit, 10)))
	}
	v1.POST("/documents", s.handleUpload, upload...)
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.GET("/documents/:id/status", s.handleDocumentStatus)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.POST("/query", s.handleQuery)
}

// Handler exposes the router, e.g. for mounting behind another server.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
