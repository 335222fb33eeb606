// Package api exposes the evaluation engine, signal coordinator and
// strategy store over HTTP using gin, plus a Prometheus /metrics endpoint.
// It is glue around internal/engine; no domain logic lives here.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/collaborators"
	"github.com/edgewatch/arbcore/internal/engine"
	"github.com/edgewatch/arbcore/internal/metrics"
	"github.com/edgewatch/arbcore/internal/signalcoord"
)

var startTime = time.Now()

// Server is the REST/WebSocket API surface over the evaluation pipeline.
type Server struct {
	router *gin.Engine
	addr   string
	server *http.Server

	eval    *engine.EvaluationService
	coord   *signalcoord.Coordinator
	strats  *collaborators.PostgresStrategyStore
	healthz func(ctx context.Context) error
	events  *signalHub
}

// Config contains server construction arguments. Strategies and Healthz
// may be nil: strategy endpoints 503 without a store, and health checks
// skip the dependency check without a Healthz func.
type Config struct {
	Host        string
	Port        int
	Eval        *engine.EvaluationService
	Coordinator *signalcoord.Coordinator
	Strategies  *collaborators.PostgresStrategyStore
	Healthz     func(ctx context.Context) error
}

// NewServer builds the gin router and registers routes.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		router:  router,
		addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		eval:    cfg.Eval,
		coord:   cfg.Coordinator,
		strats:  cfg.Strategies,
		healthz: cfg.Healthz,
	}

	if cfg.Coordinator != nil {
		s.events = newSignalHub()
		go s.events.run(cfg.Coordinator.Events())
	}

	s.setupRoutes()

	return s
}

// Start runs the HTTP server until it is shut down or fails.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the WebSocket signal stream manages its own deadlines
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware logs each request's method, path, status and latency.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logEvent := log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")

		metrics.RecordAPIRequest(c.Request.Method, c.FullPath(), fmt.Sprintf("%d", statusCode), float64(latency.Milliseconds()))
	}
}
