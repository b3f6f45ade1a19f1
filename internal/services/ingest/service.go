// Package ingest turns batches of normalized bank statement rows into
// PENDING transactions, de-duplicated per venue.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
)

const dateLayout = "2006-01-02"

// RawRow is one already-normalized statement line handed in by the caller.
// Bank-dialect parsing happens upstream; this service only validates and
// stores.
type RawRow struct {
	Date          string `json:"date"`
	ValueDate     string `json:"value_date,omitempty"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	BankReference string `json:"bank_reference,omitempty"`
	Balance       string `json:"balance,omitempty"`
}

// Result reports a finished import. Errors never abort the batch: every
// valid row is committed and the failures come back per row.
type Result struct {
	BatchID    uuid.UUID            `json:"batch_id"`
	Imported   int                  `json:"imported"`
	Duplicates int                  `json:"duplicates_skipped"`
	Replayed   bool                 `json:"replayed"`
	Errors     []apperrors.RowError `json:"errors"`
}

type Service struct {
	txRepo    *repository.BankTransactionRepository
	batchRepo *repository.ImportBatchRepository
	db        *gorm.DB
}

func NewService(txRepo *repository.BankTransactionRepository, batchRepo *repository.ImportBatchRepository) *Service {
	return &Service{
		txRepo:    txRepo,
		batchRepo: batchRepo,
		db:        txRepo.DB(),
	}
}

// ImportBatch validates rows, skips duplicates already present for the
// venue, and persists the survivors as PENDING together with the batch
// record in a single transaction.
func (s *Service) ImportBatch(ctx context.Context, venueID uuid.UUID, source string, rows []RawRow) (*Result, error) {
	if venueID == uuid.Nil {
		return nil, fmt.Errorf("%w: venue id is required", apperrors.ErrValidation)
	}
	if source == "" {
		return nil, fmt.Errorf("%w: source tag is required", apperrors.ErrValidation)
	}

	batchID := uuid.New()
	now := time.Now()

	result := &Result{BatchID: batchID, Errors: []apperrors.RowError{}}

	candidates := make([]models.BankTransaction, 0, len(rows))
	keys := make([]string, 0, len(rows))
	seenInBatch := make(map[string]bool)

	for i, row := range rows {
		tx, err := normalizeRow(row)
		if err != nil {
			result.Errors = append(result.Errors, apperrors.RowError{Row: i, Reason: err.Error()})
			continue
		}
		key := dedupKey(tx)
		if seenInBatch[key] {
			result.Duplicates++
			continue
		}
		seenInBatch[key] = true

		tx.ID = uuid.New()
		tx.VenueID = venueID
		tx.DedupKey = key
		tx.Source = source
		tx.ImportBatchID = batchID
		tx.ImportedAt = now
		tx.Status = models.StatusPending
		tx.CreatedAt = now

		candidates = append(candidates, *tx)
		keys = append(keys, key)
	}

	existing, err := s.txRepo.ExistingDedupKeys(ctx, venueID, keys)
	if err != nil {
		return nil, err
	}
	fresh := candidates[:0]
	for _, tx := range candidates {
		if existing[tx.DedupKey] {
			result.Duplicates++
			continue
		}
		fresh = append(fresh, tx)
	}

	fingerprint := fingerprintRows(rows)
	result.Replayed, err = s.batchRepo.FingerprintSeen(ctx, venueID, fingerprint)
	if err != nil {
		return nil, err
	}

	// One transaction for rows + batch record: a transaction is never
	// visible without being counted. The OnConflict insert absorbs a racing
	// import landing between the key check and the write.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.txRepo.InsertIgnoringDuplicates(tx, fresh)
		if err != nil {
			return err
		}
		result.Imported = inserted
		result.Duplicates += len(fresh) - inserted

		return s.batchRepo.Create(tx, &models.ImportBatch{
			ID:          batchID,
			VenueID:     venueID,
			Source:      source,
			Fingerprint: fingerprint,
			Imported:    result.Imported,
			Duplicates:  result.Duplicates,
			Errored:     len(result.Errors),
			Replayed:    result.Replayed,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeRow(row RawRow) (*models.BankTransaction, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(row.Date))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", row.Date)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", row.Amount)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("zero amount")
	}
	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return nil, fmt.Errorf("empty description")
	}

	tx := &models.BankTransaction{
		TransactionDate: date,
		Amount:          amount,
		Description:     desc,
		BankReference:   strings.TrimSpace(row.BankReference),
	}

	if v := strings.TrimSpace(row.ValueDate); v != "" {
		valueDate, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, fmt.Errorf("invalid value date %q", row.ValueDate)
		}
		tx.ValueDate = &valueDate
	}
	if b := strings.TrimSpace(row.Balance); b != "" {
		balance, err := decimal.NewFromString(b)
		if err != nil {
			return nil, fmt.Errorf("invalid balance %q", row.Balance)
		}
		tx.Balance = &balance
	}
	return tx, nil
}

// dedupKey prefers the bank reference; otherwise it fingerprints the facts
// that identify a statement line.
func dedupKey(tx *models.BankTransaction) string {
	if tx.BankReference != "" {
		return "ref:" + tx.BankReference
	}
	h := sha256.Sum256([]byte(tx.TransactionDate.Format(dateLayout) + "|" + tx.Amount.String() + "|" + tx.Description))
	return "fp:" + hex.EncodeToString(h[:])
}

func fingerprintRows(rows []RawRow) string {
	h := sha256.New()
	for _, row := range rows {
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s\n", row.Date, row.ValueDate, row.Amount, row.Description, row.BankReference, row.Balance)
	}
	return hex.EncodeToString(h.Sum(nil))
}
