// Package ledger is the boundary to the bookkeeping subsystem that owns
// journal entries. The reconciliation engine never touches an entry's
// business fields; it only reads eligibility and claims/releases entries
// through this interface.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Register classifies where an entry is booked.
const (
	RegisterBank = "bank"
	RegisterCash = "cash"
)

// JournalEntry is a bookkeeping line as seen by the engine. Amount is
// signed: debits are positive, credits negative. Consumed marks the entry
// as paired to a bank transaction and is the single source of truth for
// availability.
type JournalEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	VenueID     uuid.UUID       `gorm:"type:uuid;index" json:"venue_id"`
	EntryDate   time.Time       `gorm:"index" json:"entry_date"`
	Amount      decimal.Decimal `gorm:"type:numeric" json:"amount"`
	Description string          `json:"description"`
	DocumentRef string          `json:"document_ref,omitempty"`
	Register    string          `gorm:"index" json:"register"`
	Consumed    bool            `gorm:"index" json:"consumed"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Ledger is the collaborator interface required from the bookkeeping
// subsystem.
type Ledger interface {
	// FindCandidateEntries returns bank-register entries for the venue with
	// an entry date inside [from, to]. With excludeConsumed, entries already
	// paired to a transaction are filtered out.
	FindCandidateEntries(ctx context.Context, venueID uuid.UUID, from, to time.Time, excludeConsumed bool) ([]JournalEntry, error)

	// GetEntry fetches a single entry.
	GetEntry(ctx context.Context, entryID uuid.UUID) (*JournalEntry, error)

	// TryConsumeEntry atomically claims the entry. It returns false when the
	// entry is already consumed, so two racing claimants see exactly one
	// success.
	TryConsumeEntry(ctx context.Context, entryID uuid.UUID) (bool, error)

	// ReleaseEntry puts the entry back into the candidate pool.
	ReleaseEntry(ctx context.Context, entryID uuid.UUID) error
}
