package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/workflow"
)

type TransactionHandler struct {
	workflow *workflow.Service
}

func NewTransactionHandler(wf *workflow.Service) *TransactionHandler {
	return &TransactionHandler{workflow: wf}
}

// actingUser comes from the X-User header; authentication itself is a
// collaborator concern.
func actingUser(c *gin.Context) string {
	if u := c.GetHeader("X-User"); u != "" {
		return u
	}
	return "unknown"
}

func (h *TransactionHandler) txID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *TransactionHandler) Confirm(c *gin.Context) {
	id, ok := h.txID(c)
	if !ok {
		return
	}
	tx, err := h.workflow.Confirm(c.Request.Context(), id, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *TransactionHandler) ManualMatch(c *gin.Context) {
	id, ok := h.txID(c)
	if !ok {
		return
	}
	var payload struct {
		EntryID string `json:"entry_id" binding:"required"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	entryID, err := uuid.Parse(payload.EntryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry ID"})
		return
	}
	tx, err := h.workflow.ManualMatch(c.Request.Context(), id, entryID, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *TransactionHandler) Unmatch(c *gin.Context) {
	id, ok := h.txID(c)
	if !ok {
		return
	}
	tx, err := h.workflow.Unmatch(c.Request.Context(), id, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *TransactionHandler) Ignore(c *gin.Context) {
	id, ok := h.txID(c)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&payload) // body is optional
	tx, err := h.workflow.Ignore(c.Request.Context(), id, actingUser(c), payload.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *TransactionHandler) RejectProposal(c *gin.Context) {
	id, ok := h.txID(c)
	if !ok {
		return
	}
	tx, err := h.workflow.RejectProposal(c.Request.Context(), id, actingUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
