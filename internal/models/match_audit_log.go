package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchAuditLog records one workflow action on a transaction. Append-only.
type MatchAuditLog struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TransactionID uuid.UUID  `gorm:"type:uuid;index"`
	Action        string
	PreviousEntry *uuid.UUID `gorm:"type:uuid"`
	NewEntry      *uuid.UUID `gorm:"type:uuid"`
	PerformedBy   string
	Reason        string
	CreatedAt     time.Time
}
