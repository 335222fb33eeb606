package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/edgewatch/arbcore/internal/arbmodel"
	"github.com/edgewatch/arbcore/internal/strategy"
)

// handleListStrategies returns approved strategies, optionally filtered by kind.
func (s *Server) handleListStrategies(c *gin.Context) {
	if s.strats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "strategy store not configured"})
		return
	}

	kind := arbmodel.OpportunityKind(c.Query("kind"))
	if kind == "" {
		kind = arbmodel.OpportunityDirect
	}

	strategies, err := s.strats.ListApproved(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"strategies": strategies})
}

// handleGetStrategy fetches a single strategy by id.
func (s *Server) handleGetStrategy(c *gin.Context) {
	if s.strats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "strategy store not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}

	strat, found, err := s.strats.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}

	c.JSON(http.StatusOK, strat)
}

// handleUpsertStrategy validates and persists a strategy document.
func (s *Server) handleUpsertStrategy(c *gin.Context) {
	if s.strats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "strategy store not configured"})
		return
	}

	var doc strategy.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := doc.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if doc.Strategy.ID == uuid.Nil {
		doc.Strategy.ID = uuid.New()
	}

	if err := s.strats.Upsert(c.Request.Context(), doc.Strategy); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc.Strategy)
}

// handleExportStrategy returns a strategy as a downloadable YAML document.
func (s *Server) handleExportStrategy(c *gin.Context) {
	if s.strats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "strategy store not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid strategy id"})
		return
	}

	strat, found, err := s.strats.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}

	doc := strategy.Document{
		Metadata: strategy.DocumentMetadata{
			SchemaVersion: strategy.SchemaVersion,
			Source:        "export",
		},
		Strategy: strat,
	}

	data, err := strategy.Export(&doc, strategy.DefaultExportOptions())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+strat.Name+".yaml\"")
	c.Data(http.StatusOK, "application/x-yaml", data)
}
