package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
)

type BankTransactionRepository struct {
	db *gorm.DB
}

func NewBankTransactionRepository(db *gorm.DB) *BankTransactionRepository {
	return &BankTransactionRepository{db: db}
}

// DB exposes the underlying handle for multi-repo transactions.
func (r *BankTransactionRepository) DB() *gorm.DB {
	return r.db
}

func (r *BankTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error) {
	var tx models.BankTransaction
	err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// InsertIgnoringDuplicates inserts rows, silently skipping any that collide
// with the per-venue dedup index. Returns how many were actually written.
func (r *BankTransactionRepository) InsertIgnoringDuplicates(tx *gorm.DB, rows []models.BankTransaction) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// ExistingDedupKeys returns which of the given keys are already present for
// the venue.
func (r *BankTransactionRepository) ExistingDedupKeys(ctx context.Context, venueID uuid.UUID, keys []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(keys) == 0 {
		return existing, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("venue_id = ? AND dedup_key IN ?", venueID, keys).
		Pluck("dedup_key", &found).Error
	if err != nil {
		return nil, err
	}
	for _, k := range found {
		existing[k] = true
	}
	return existing, nil
}

// ListUnresolved returns the transactions a reconciliation run may touch:
// PENDING and UNMATCHED only. Every other status is stable under re-runs.
func (r *BankTransactionRepository) ListUnresolved(ctx context.Context, venueID uuid.UUID) ([]models.BankTransaction, error) {
	var txs []models.BankTransaction
	err := r.db.WithContext(ctx).
		Where("venue_id = ? AND status IN ?", venueID, []models.Status{models.StatusPending, models.StatusUnmatched}).
		Order("transaction_date ASC, id ASC").
		Find(&txs).Error
	return txs, err
}

// ListByVenue returns transactions for a venue, optionally filtered by
// status, newest first.
func (r *BankTransactionRepository) ListByVenue(ctx context.Context, venueID uuid.UUID, status *models.Status, limit int) ([]models.BankTransaction, error) {
	q := r.db.WithContext(ctx).Where("venue_id = ?", venueID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []models.BankTransaction
	err := q.Order("transaction_date DESC, id ASC").Find(&txs).Error
	return txs, err
}

// UpdateIfStatus applies updates to the transaction only while its status
// is still one of fromStatuses. Returns apperrors.ErrConflict when the row
// was changed underneath the caller.
func (r *BankTransactionRepository) UpdateIfStatus(tx *gorm.DB, id uuid.UUID, fromStatuses []models.Status, updates map[string]interface{}) error {
	res := tx.Model(&models.BankTransaction{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// ProposedEntryIDs returns the entries currently referenced by a live
// TO_REVIEW proposal for the venue. Those entries are not consumed yet but
// must not be proposed a second time.
func (r *BankTransactionRepository) ProposedEntryIDs(ctx context.Context, venueID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("venue_id = ? AND status = ? AND matched_entry_id IS NOT NULL", venueID, models.StatusToReview).
		Pluck("matched_entry_id", &ids).Error
	return ids, err
}

// StatusCount is one row of the per-status rollup.
type StatusCount struct {
	Status models.Status
	Count  int64
}

func (r *BankTransactionRepository) CountByStatus(ctx context.Context, venueID uuid.UUID) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).Model(&models.BankTransaction{}).
		Where("venue_id = ?", venueID).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	return rows, err
}
