package api

import (
	"github.com/gin-gonic/gin"

	"github.com/edgewatch/arbcore/internal/metrics"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/health", s.handleGetHealth)

		v1.POST("/evaluate", s.handleEvaluate)

		signals := v1.Group("/signals")
		{
			signals.GET("", s.handleListSignals)
			signals.GET("/stream", s.handleSignalStream)
		}

		strategies := v1.Group("/strategies")
		{
			strategies.GET("", s.handleListStrategies)
			strategies.GET("/:id", s.handleGetStrategy)
			strategies.PUT("", s.handleUpsertStrategy)
			strategies.GET("/:id/export", s.handleExportStrategy)
		}
	}

	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.router.GET("/", s.handleRoot)
}
