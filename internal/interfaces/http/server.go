// internal/interfaces/http/server.go
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/interfaces/http/routes"
	"github.com/your-org/storefront/internal/pkg/auth"
)

// HealthCheck probes one backing service
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators the server mounts
type Dependencies struct {
	Handlers    routes.Handlers
	JWT         *auth.JWTManager
	Sessions    middleware.SessionStore
	RateLimiter middleware.RateLimitStore
	Registry    *prometheus.Registry
	Checks      []HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	logger     *logrus.Logger
	deps       Dependencies
	gin        *gin.Engine
	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a new HTTP server instance with its routes mounted
func NewServer(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		deps:      deps,
		gin:       gin.New(),
		startedAt: time.Now(),
	}
	if err := s.gin.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		logger.WithError(err).Warn("Invalid trusted proxies, trusting none")
		_ = s.gin.SetTrustedProxies(nil)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Server.Port,
		Handler:      s.gin,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.WithFields(logrus.Fields{
		"port":   s.config.Server.Port,
		"health": "/health",
	}).Info("HTTP server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// setupMiddleware configures the global middleware chain
func (s *Server) setupMiddleware() {
	s.gin.Use(gin.Recovery())
	s.gin.Use(middleware.RequestID())
	s.gin.Use(middleware.Logger(s.logger))
	s.gin.Use(middleware.CORS(s.config.Security))
	s.gin.Use(middleware.SecurityHeaders(s.config.App.Name, s.config.IsProduction()))
	if s.deps.RateLimiter != nil {
		s.gin.Use(middleware.RateLimit(s.config.Security.RateLimitPerMinute, s.deps.RateLimiter, s.logger))
	}
	s.gin.Use(middleware.RequestSizeLimit(s.config.Server.MaxBodyBytes, s.logger))
}

// setupRoutes configures all routes for the server
func (s *Server) setupRoutes() {
	s.gin.GET("/health", s.healthCheck)
	s.gin.GET("/ready", s.readinessCheck)
	if s.deps.Registry != nil {
		s.gin.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))
	}

	apiV1 := s.gin.Group("/api/v1")
	apiV1.Use(middleware.Session(s.deps.Sessions, s.config.Session, s.logger))

	routes.SetupRoutes(apiV1, s.deps.Handlers, s.deps.JWT, s.logger)
}

// healthCheck reports whether every backing service answers
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	for _, hc := range s.deps.Checks {
		if err := hc.Check(ctx); err != nil {
			s.logger.WithError(err).WithField("check", hc.Name).Warn("Health check failed")
			checks[hc.Name] = "unhealthy"
			healthy = false
			continue
		}
		checks[hc.Name] = "healthy"
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":      status,
		"checks":      checks,
		"timestamp":   time.Now().UTC(),
		"version":     s.config.App.Version,
		"environment": s.config.App.Environment,
	})
}

// readinessCheck handles readiness check requests
func (s *Server) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}
