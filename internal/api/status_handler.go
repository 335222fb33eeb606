package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "arbcore",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetStatus reports process and pipeline health for dashboards.
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	depStatus := "not_configured"
	if s.healthz != nil {
		depStatus = "healthy"
		if err := s.healthz(c.Request.Context()); err != nil {
			depStatus = "unhealthy"
			log.Warn().Err(err).Msg("dependency health check failed")
		}
	}

	systemStatus := "healthy"
	if depStatus == "unhealthy" {
		systemStatus = "degraded"
	}

	activeSignals := 0
	droppedOpportunities := uint64(0)
	if s.coord != nil {
		activeSignals = len(s.coord.Active())
		droppedOpportunities = s.coord.Dropped()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    systemStatus,
		"timestamp": time.Now().UTC(),
		"uptime_seconds": time.Since(startTime).Seconds(),
		"components": gin.H{
			"dependencies": gin.H{"status": depStatus},
		},
		"pipeline": gin.H{
			"active_signals":        activeSignals,
			"dropped_opportunities": droppedOpportunities,
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": toMB(memStats.Alloc),
				"sys_mb":   toMB(memStats.Sys),
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

// handleGetHealth is a lightweight liveness probe with no dependency checks.
func (s *Server) handleGetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toMB(bytes uint64) float64 {
	return float64(bytes) / 1024 / 1024
}
