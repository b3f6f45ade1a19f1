package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/ingest"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/matching"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/summary"
)

type ReconciliationHandler struct {
	ingest  *ingest.Service
	engine  *matching.Engine
	summary *summary.Service
	txRepo  *repository.BankTransactionRepository
}

func NewReconciliationHandler(ing *ingest.Service, eng *matching.Engine, sum *summary.Service, txRepo *repository.BankTransactionRepository) *ReconciliationHandler {
	return &ReconciliationHandler{ingest: ing, engine: eng, summary: sum, txRepo: txRepo}
}

type importRequest struct {
	Source string          `json:"source" binding:"required"`
	Rows   []ingest.RawRow `json:"rows" binding:"required"`
}

// Import ingests a batch of normalized statement rows for a venue.
func (h *ReconciliationHandler) Import(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue ID"})
		return
	}
	var req importRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.ingest.ImportBatch(c.Request.Context(), venueID, req.Source, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Run triggers a reconciliation run for the venue. Blocking; the run is
// idempotent and safe to retry.
func (h *ReconciliationHandler) Run(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue ID"})
		return
	}
	result, err := h.engine.RunReconciliation(c.Request.Context(), venueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary returns the read-only rollup for the venue.
func (h *ReconciliationHandler) Summary(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue ID"})
		return
	}
	result, err := h.summary.GetSummary(c.Request.Context(), venueID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

const defaultListLimit = 50

// ListTransactions returns the venue's transactions, optionally filtered
// by status.
func (h *ReconciliationHandler) ListTransactions(c *gin.Context) {
	venueID, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid venue ID"})
		return
	}

	var status *models.Status
	if raw := c.Query("status"); raw != "" {
		s := models.Status(raw)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
			return
		}
		status = &s
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := h.txRepo.ListByVenue(c.Request.Context(), venueID, status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
