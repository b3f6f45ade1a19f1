package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
)

type ImportBatchRepository struct {
	db *gorm.DB
}

func NewImportBatchRepository(db *gorm.DB) *ImportBatchRepository {
	return &ImportBatchRepository{db: db}
}

func (r *ImportBatchRepository) Create(tx *gorm.DB, batch *models.ImportBatch) error {
	return tx.Create(batch).Error
}

// FingerprintSeen reports whether an earlier batch for the venue carried
// the same content fingerprint.
func (r *ImportBatchRepository) FingerprintSeen(ctx context.Context, venueID uuid.UUID, fingerprint string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ImportBatch{}).
		Where("venue_id = ? AND fingerprint = ?", venueID, fingerprint).
		Count(&count).Error
	return count > 0, err
}
