package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/edgewatch/arbcore/internal/arbmodel"
)

type evaluateRequest struct {
	Inputs []arbmodel.ArbitrageInputs `json:"inputs" binding:"required,min=1,dive"`
}

type evaluateResponse struct {
	Results []arbmodel.ArbitrageResult `json:"results"`
	Errors  []*arbmodel.ItemError      `json:"errors,omitempty"`
}

// handleEvaluate scores a batch of arbitrage candidates on demand, bypassing
// the streaming pipeline. Useful for backtests and ad-hoc what-if queries.
func (s *Server) handleEvaluate(c *gin.Context) {
	if s.eval == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evaluation service not configured"})
		return
	}

	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, itemErrs := s.eval.EvaluateBatch(c.Request.Context(), req.Inputs)
	if len(itemErrs) > 0 {
		log.Warn().Int("count", len(itemErrs)).Msg("evaluate batch produced item errors")
	}

	c.JSON(http.StatusOK, evaluateResponse{Results: results, Errors: itemErrs})
}
