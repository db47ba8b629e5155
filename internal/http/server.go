// Package http provides HTTP server implementation and request handlers using Gin web framework.
// The server uses Clean Architecture principles with structured logging (slog) and graceful shutdown.
//
// This server uses Gin (github.com/gin-gonic/gin) for HTTP routing while maintaining
// compatibility with the application's existing patterns:
//   - Custom slog-based logging middleware (instead of Gin's default logger)
//   - Gin-compatible error handling utilities (httputil.HandleErrorGin)
//   - Manual http.Server configuration for timeout and graceful shutdown control
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cripta/envelopesvc/internal/config"
	envelopeHTTP "github.com/cripta/envelopesvc/internal/envelope/http"
	"github.com/cripta/envelopesvc/internal/metrics"
	"github.com/cripta/envelopesvc/internal/tenant"
)

// Server represents the HTTP server.
type Server struct {
	db       *sql.DB
	server   *http.Server
	logger   *slog.Logger
	router   *gin.Engine
	reqGroup singleflight.Group
}

// NewServer creates a new HTTP server. db is the global tenant's database
// connection, used only for the readiness probe.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter configures the Gin router with all routes and middleware.
// This method is called during server initialization with all required dependencies.
func (s *Server) SetupRouter(
	cfg *config.Config,
	envelopeHandler *envelopeHTTP.Handler,
	router *tenant.Router,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	// Create Gin engine without default middleware
	engine := gin.New()

	// Apply custom middleware
	engine.Use(gin.Recovery()) // Gin's panic recovery

	// Add CORS middleware if enabled
	if corsMiddleware := createCORSMiddleware(
		cfg.CORSEnabled,
		cfg.CORSAllowOrigins,
		s.logger,
	); corsMiddleware != nil {
		engine.Use(corsMiddleware)
	}

	engine.Use(requestid.New(requestid.WithGenerator(func() string {
		return ulid.Make().String()
	}))) // x-request-id propagated, or synthesized as a ULID
	engine.Use(CustomLoggerMiddleware(s.logger)) // Custom slog logger

	// Add HTTP metrics middleware if metrics are enabled
	if metricsProvider != nil {
		engine.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	// Health and readiness endpoints (outside tenant scoping)
	engine.GET("/health", s.healthHandler)
	engine.GET("/ready", s.readinessHandler)

	// Rate limiting, applied per tenant rather than per auth token: the
	// envelope control surface has no bearer-token auth layer, only the
	// optional per-request custodian Basic credentials.
	var rateLimitMiddleware gin.HandlerFunc
	if cfg.RateLimitEnabled {
		rateLimitMiddleware = RateLimitMiddleware(cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger)
	}

	api := engine.Group("/")
	api.Use(envelopeHTTP.TenantMiddleware(router, s.logger))
	if rateLimitMiddleware != nil {
		api.Use(rateLimitMiddleware)
	}
	envelopeHandler.RegisterRoutes(api)

	s.router = engine
}

// GetHandler returns the http.Handler for testing purposes.
// Returns nil if SetupRouter has not been called yet.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	// Router must be set up before starting
	if s.router == nil {
		return fmt.Errorf("router not initialized - call SetupRouter first")
	}

	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler returns the plain-text liveness response.
func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "Health is good")
}

type readinessResponse struct {
	StatusCode int
	Body       gin.H
}

// readinessHandler returns a simple readiness check response.
func (s *Server) readinessHandler(c *gin.Context) {
	v, _, _ := s.reqGroup.Do("readiness", func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		dbStatus := "ok"
		httpStatus := http.StatusOK

		if s.db == nil {
			s.logger.Error("readiness check failed: database not initialized")
			dbStatus = "error"
			httpStatus = http.StatusServiceUnavailable
		} else if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error("readiness check failed: database ping error", slog.Any("err", err))
			dbStatus = "error"
			httpStatus = http.StatusServiceUnavailable
		}

		return readinessResponse{
			StatusCode: httpStatus,
			Body: gin.H{
				"status": map[int]string{
					http.StatusOK:                 "ready",
					http.StatusServiceUnavailable: "not_ready",
				}[httpStatus],
				"components": gin.H{
					"database": dbStatus,
				},
			},
		}, nil
	})

	res := v.(readinessResponse)
	c.JSON(res.StatusCode, res.Body)
}
