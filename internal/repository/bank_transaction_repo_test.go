package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
)

func newRepo(t *testing.T) (*repository.BankTransactionRepository, *gorm.DB) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.BankTransaction{},
		&models.ImportBatch{},
		&models.MatchAuditLog{},
		&ledger.JournalEntry{},
	))
	return repository.NewBankTransactionRepository(db), db
}

func seedTx(t *testing.T, db *gorm.DB, venueID uuid.UUID, status models.Status, entryID *uuid.UUID) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{
		ID:              uuid.New(),
		VenueID:         venueID,
		TransactionDate: time.Now(),
		Amount:          decimal.RequireFromString("-10.00"),
		Description:     "movimento",
		DedupKey:        "ref:" + uuid.NewString(),
		Source:          "test",
		ImportBatchID:   uuid.New(),
		ImportedAt:      time.Now(),
		Status:          status,
		MatchedEntryID:  entryID,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func TestUpdateIfStatusGuardsConcurrency(t *testing.T) {
	repo, db := newRepo(t)
	tx := seedTx(t, db, uuid.New(), models.StatusPending, nil)

	err := repo.UpdateIfStatus(db, tx.ID,
		[]models.Status{models.StatusPending},
		map[string]interface{}{"status": models.StatusUnmatched})
	require.NoError(t, err)

	// Same guard again: the row is no longer PENDING.
	err = repo.UpdateIfStatus(db, tx.ID,
		[]models.Status{models.StatusPending},
		map[string]interface{}{"status": models.StatusIgnored})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	var got models.BankTransaction
	require.NoError(t, db.First(&got, "id = ?", tx.ID).Error)
	assert.Equal(t, models.StatusUnmatched, got.Status)
}

func TestListUnresolvedSelectsOnlyPendingAndUnmatched(t *testing.T) {
	repo, db := newRepo(t)
	venueID := uuid.New()

	pending := seedTx(t, db, venueID, models.StatusPending, nil)
	unmatched := seedTx(t, db, venueID, models.StatusUnmatched, nil)
	seedTx(t, db, venueID, models.StatusToReview, nil)
	seedTx(t, db, venueID, models.StatusMatched, nil)
	seedTx(t, db, venueID, models.StatusIgnored, nil)
	seedTx(t, db, uuid.New(), models.StatusPending, nil)

	got, err := repo.ListUnresolved(context.Background(), venueID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	ids := []uuid.UUID{got[0].ID, got[1].ID}
	assert.Contains(t, ids, pending.ID)
	assert.Contains(t, ids, unmatched.ID)
}

func TestProposedEntryIDs(t *testing.T) {
	repo, db := newRepo(t)
	venueID := uuid.New()

	proposed := uuid.New()
	committed := uuid.New()
	seedTx(t, db, venueID, models.StatusToReview, &proposed)
	seedTx(t, db, venueID, models.StatusMatched, &committed)
	seedTx(t, db, venueID, models.StatusPending, nil)

	got, err := repo.ProposedEntryIDs(context.Background(), venueID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, proposed, got[0])
}

func TestListByVenueStatusFilterAndLimit(t *testing.T) {
	repo, db := newRepo(t)
	venueID := uuid.New()

	for i := 0; i < 3; i++ {
		seedTx(t, db, venueID, models.StatusUnmatched, nil)
	}
	seedTx(t, db, venueID, models.StatusPending, nil)

	status := models.StatusUnmatched
	got, err := repo.ListByVenue(context.Background(), venueID, &status, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	all, err := repo.ListByVenue(context.Background(), venueID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
