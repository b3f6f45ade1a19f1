package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BankTransaction is one normalized bank statement line for a venue.
//
// MatchedEntryID carries two meanings depending on Status: for MATCHED and
// MANUAL it is the committed pairing, for TO_REVIEW it is only a proposal
// and the referenced entry has not been consumed yet.
type BankTransaction struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	VenueID uuid.UUID `gorm:"type:uuid;index:idx_venue_dedup,unique;index" json:"venue_id"`

	TransactionDate time.Time        `gorm:"index" json:"transaction_date"`
	ValueDate       *time.Time       `json:"value_date,omitempty"`
	Amount          decimal.Decimal  `gorm:"type:numeric" json:"amount"`
	Description     string           `json:"description"`
	BankReference   string           `json:"bank_reference,omitempty"`
	Balance         *decimal.Decimal `gorm:"type:numeric" json:"balance,omitempty"`

	DedupKey      string    `gorm:"index:idx_venue_dedup,unique" json:"-"`
	Source        string    `json:"source"`
	ImportBatchID uuid.UUID `gorm:"type:uuid;index" json:"import_batch_id"`
	ImportedAt    time.Time `json:"imported_at"`

	Status         Status         `gorm:"index" json:"status"`
	MatchedEntryID *uuid.UUID     `gorm:"type:uuid;index" json:"matched_entry_id,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	MatchDetails   datatypes.JSON `json:"match_details,omitempty"`
	ReconciledAt   *time.Time     `json:"reconciled_at,omitempty"`
	ResolvedBy     string         `json:"resolved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
