package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportBatch groups the transactions created by one ingestion run.
// Fingerprint is a sha256 over the raw rows and is used to flag replays
// of byte-identical source data.
type ImportBatch struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VenueID     uuid.UUID `gorm:"type:uuid;index" json:"venue_id"`
	Source      string    `json:"source"`
	Fingerprint string    `gorm:"index" json:"fingerprint"`
	Imported    int       `json:"imported"`
	Duplicates  int       `json:"duplicates"`
	Errored     int       `json:"errored"`
	Replayed    bool      `json:"replayed"`
	CreatedAt   time.Time `json:"created_at"`
}
