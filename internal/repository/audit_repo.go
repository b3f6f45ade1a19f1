package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append writes one audit row inside the caller's transaction.
func (r *AuditRepository) Append(tx *gorm.DB, txID uuid.UUID, action string, prev, next *uuid.UUID, performedBy, reason string) error {
	return tx.Create(&models.MatchAuditLog{
		ID:            uuid.New(),
		TransactionID: txID,
		Action:        action,
		PreviousEntry: prev,
		NewEntry:      next,
		PerformedBy:   performedBy,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}).Error
}
