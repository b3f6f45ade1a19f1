package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
)

// GormLedger is the gorm-backed implementation of Ledger.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

var _ Ledger = (*GormLedger)(nil)

func (l *GormLedger) FindCandidateEntries(ctx context.Context, venueID uuid.UUID, from, to time.Time, excludeConsumed bool) ([]JournalEntry, error) {
	var entries []JournalEntry
	q := l.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Where("register = ?", RegisterBank).
		Where("entry_date >= ? AND entry_date <= ?", from, to)
	if excludeConsumed {
		q = q.Where("consumed = ?", false)
	}
	err := q.Order("entry_date ASC").Find(&entries).Error
	return entries, err
}

func (l *GormLedger) GetEntry(ctx context.Context, entryID uuid.UUID) (*JournalEntry, error) {
	var entry JournalEntry
	err := l.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// TryConsumeEntry claims with a conditional update so the check and the
// write are one statement; RowsAffected tells the winner from the losers.
func (l *GormLedger) TryConsumeEntry(ctx context.Context, entryID uuid.UUID) (bool, error) {
	res := l.db.WithContext(ctx).Model(&JournalEntry{}).
		Where("id = ? AND consumed = ?", entryID, false).
		Update("consumed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (l *GormLedger) ReleaseEntry(ctx context.Context, entryID uuid.UUID) error {
	res := l.db.WithContext(ctx).Model(&JournalEntry{}).
		Where("id = ?", entryID).
		Update("consumed", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
