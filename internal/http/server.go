// Package http serves the codeindex search API over echo.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindex/internal/config"
	"github.com/fyrsmithlabs/codeindex/internal/embeddings"
	"github.com/fyrsmithlabs/codeindex/internal/logging"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// maxBodyBytes bounds request bodies; document uploads carry vectors.
const maxBodyBytes = "32M"

// Server exposes a VectorDatabase over HTTP.
type Server struct {
	echo     *echo.Echo
	store    vectorstore.VectorDatabase
	embedder embeddings.Provider
	logger   *zap.Logger
	config   *Config
	health   healthReporter
}

// healthReporter is satisfied by vectorstore.HealthMonitor.
type healthReporter interface {
	IsHealthy() bool
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	Version         string
}

// ConfigFromApp maps the server section of the config file.
func ConfigFromApp(cfg config.ServerConfig, version string) *Config {
	return &Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration(),
		Version:         version,
	}
}

// NewServer creates a server for store. embedder may be nil, in which case
// requests that carry text instead of vectors are rejected.
func NewServer(store vectorstore.VectorDatabase, embedder embeddings.Provider, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, errors.New("vector store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 9090}
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit(maxBodyBytes))
	e.Use(requestContext())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		store:    store,
		embedder: embedder,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/collections", s.handleListCollections)
	v1.POST("/collections", s.handleCreateCollection)
	v1.GET("/collections/:name", s.handleHasCollection)
	v1.DELETE("/collections/:name", s.handleDropCollection)
	v1.POST("/collections/:name/documents", s.handleInsert)
	v1.POST("/collections/:name/search", s.handleSearch)
	v1.POST("/collections/:name/hybrid", s.handleHybridSearch)
	v1.POST("/collections/:name/query", s.handleQuery)
	v1.POST("/collections/:name/delete", s.handleDelete)
}

// requestContext copies the echo request ID into the request context so
// that downstream logs carry it.
func requestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(req.Context(), id)
			if name := c.Param("name"); name != "" {
				ctx = logging.WithCollection(ctx, name)
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	}
}

// SetHealth makes /health report the backend state from h. Without it the
// endpoint only reports that the process is serving.
func (s *Server) SetHealth(h healthReporter) {
	s.health = h
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.Addr()))
	return s.echo.Start(s.Addr())
}

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
