package matching_test

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

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/config"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/services/matching"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func defaultMatchConfig() config.Matching {
	return config.Matching{
		DateWindowDays:  10,
		AmountTolerance: "0.01",
		AutoThreshold:   0.9,
		ReviewThreshold: 0.5,
		TieMargin:       0.05,
		Workers:         2,
	}
}

func newEngine(db *gorm.DB, cfg config.Matching) (*matching.Engine, *repository.BankTransactionRepository, *ledger.GormLedger) {
	txRepo := repository.NewBankTransactionRepository(db)
	lgr := ledger.NewGormLedger(db)
	return matching.NewEngine(txRepo, lgr, cfg, nil), txRepo, lgr
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedTx(t *testing.T, db *gorm.DB, venueID uuid.UUID, date, amount, desc string, status models.Status) *models.BankTransaction {
	t.Helper()
	tx := &models.BankTransaction{
		ID:              uuid.New(),
		VenueID:         venueID,
		TransactionDate: day(date),
		Amount:          amt(amount),
		Description:     desc,
		DedupKey:        "ref:" + uuid.NewString(),
		Source:          "test",
		ImportBatchID:   uuid.New(),
		ImportedAt:      time.Now(),
		Status:          status,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}

func seedEntry(t *testing.T, db *gorm.DB, venueID uuid.UUID, date, amount, desc, docRef string) *ledger.JournalEntry {
	t.Helper()
	entry := &ledger.JournalEntry{
		ID:          uuid.New(),
		VenueID:     venueID,
		EntryDate:   day(date),
		Amount:      amt(amount),
		Description: desc,
		DocumentRef: docRef,
		Register:    ledger.RegisterBank,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, db.Create(entry).Error)
	return entry
}

func reload(t *testing.T, db *gorm.DB, id uuid.UUID) *models.BankTransaction {
	t.Helper()
	var tx models.BankTransaction
	require.NoError(t, db.First(&tx, "id = ?", id).Error)
	return &tx
}

func reloadEntry(t *testing.T, db *gorm.DB, id uuid.UUID) *ledger.JournalEntry {
	t.Helper()
	var entry ledger.JournalEntry
	require.NoError(t, db.First(&entry, "id = ?", id).Error)
	return &entry
}

func TestRunReconciliationAutoMatchesSupplierPayment(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	tx := seedTx(t, db, venueID, "2026-01-05", "-150.00", "PAGAMENTO FORNITORE XYZ", models.StatusPending)
	entry := seedEntry(t, db, venueID, "2026-01-06", "150.00", "Fornitore XYZ", "fattura 123")

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Zero(t, result.ToReview)
	assert.Zero(t, result.Unmatched)

	got := reload(t, db, tx.ID)
	assert.Equal(t, models.StatusMatched, got.Status)
	require.NotNil(t, got.MatchedEntryID)
	assert.Equal(t, entry.ID, *got.MatchedEntryID)
	require.NotNil(t, got.Confidence)
	assert.GreaterOrEqual(t, *got.Confidence, 0.9)
	assert.NotNil(t, got.ReconciledAt)
	assert.NotEmpty(t, got.MatchDetails)

	assert.True(t, reloadEntry(t, db, entry.ID).Consumed)
}

func TestRunReconciliationContestedEntryGoesToBestScore(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	entry := seedEntry(t, db, venueID, "2026-01-05", "100.00", "Fornitore Alfa", "fattura 55")
	strong := seedTx(t, db, venueID, "2026-01-05", "-100.00", "PAGAMENTO FORNITORE ALFA FATTURA 55", models.StatusPending)
	weak := seedTx(t, db, venueID, "2026-01-09", "-100.00", "BONIFICO GENERICO", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Unmatched)

	gotStrong := reload(t, db, strong.ID)
	require.NotNil(t, gotStrong.MatchedEntryID)
	assert.Equal(t, entry.ID, *gotStrong.MatchedEntryID)
	assert.Equal(t, models.StatusMatched, gotStrong.Status)

	gotWeak := reload(t, db, weak.ID)
	assert.Equal(t, models.StatusUnmatched, gotWeak.Status)
	assert.Nil(t, gotWeak.MatchedEntryID)
}

func TestRunReconciliationNearTieGoesToReview(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	first := seedEntry(t, db, venueID, "2026-01-05", "50.00", "Fornitore Beta", "")
	second := seedEntry(t, db, venueID, "2026-01-05", "50.00", "Fornitore Beta", "")
	tx := seedTx(t, db, venueID, "2026-01-05", "-50.00", "PAGAMENTO FORNITORE BETA", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Zero(t, result.Matched)
	assert.Equal(t, 1, result.ToReview)

	got := reload(t, db, tx.ID)
	assert.Equal(t, models.StatusToReview, got.Status)
	require.NotNil(t, got.MatchedEntryID)
	assert.Contains(t, []uuid.UUID{first.ID, second.ID}, *got.MatchedEntryID)
	require.NotNil(t, got.Confidence)
	assert.Nil(t, got.ReconciledAt)

	// A proposal never consumes: both entries stay in the pool.
	assert.False(t, reloadEntry(t, db, first.ID).Consumed)
	assert.False(t, reloadEntry(t, db, second.ID).Consumed)
}

func TestRunReconciliationNoCandidateBecomesUnmatched(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	tx := seedTx(t, db, venueID, "2026-01-05", "-75.00", "PRELIEVO CONTANTI", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, models.StatusUnmatched, reload(t, db, tx.ID).Status)
}

func TestRunReconciliationSkipsConsumedEntries(t *testing.T) {
	db := newTestDB(t)
	engine, _, lgr := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	entry := seedEntry(t, db, venueID, "2026-01-05", "60.00", "Fornitore Gamma", "")
	claimed, err := lgr.TryConsumeEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	tx := seedTx(t, db, venueID, "2026-01-05", "-60.00", "PAGAMENTO FORNITORE GAMMA", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Nil(t, reload(t, db, tx.ID).MatchedEntryID)
}

func TestRunReconciliationIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	// One clean auto-match, one ambiguous pair, one orphan.
	seedEntry(t, db, venueID, "2026-01-06", "150.00", "Fornitore XYZ", "fattura 123")
	seedTx(t, db, venueID, "2026-01-05", "-150.00", "PAGAMENTO FORNITORE XYZ", models.StatusPending)
	seedEntry(t, db, venueID, "2026-01-05", "50.00", "Fornitore Beta", "")
	seedEntry(t, db, venueID, "2026-01-05", "50.00", "Fornitore Beta", "")
	seedTx(t, db, venueID, "2026-01-05", "-50.00", "PAGAMENTO FORNITORE BETA", models.StatusPending)
	seedTx(t, db, venueID, "2026-01-05", "-75.00", "PRELIEVO CONTANTI", models.StatusPending)

	first, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Matched)
	assert.Equal(t, 1, first.ToReview)
	assert.Equal(t, 1, first.Unmatched)

	second, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Zero(t, second.Matched)
	assert.Zero(t, second.ToReview)
	assert.Zero(t, second.Unmatched)
}

func TestRunReconciliationLeavesIgnoredAlone(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()

	entry := seedEntry(t, db, venueID, "2026-01-05", "90.00", "Fornitore Delta", "")
	tx := seedTx(t, db, venueID, "2026-01-05", "-90.00", "PAGAMENTO FORNITORE DELTA", models.StatusIgnored)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Zero(t, result.Matched+result.ToReview+result.Unmatched)

	assert.Equal(t, models.StatusIgnored, reload(t, db, tx.ID).Status)
	assert.False(t, reloadEntry(t, db, entry.ID).Consumed)
}

func TestRunReconciliationHonorsReviewThreshold(t *testing.T) {
	db := newTestDB(t)
	cfg := defaultMatchConfig()
	cfg.ReviewThreshold = 0.7
	engine, _, _ := newEngine(db, cfg)
	venueID := uuid.New()

	// Amount matches but ten days off with no description overlap: the
	// score is the bare amount term 0.60, below the raised threshold.
	seedEntry(t, db, venueID, "2026-01-15", "40.00", "Quota associativa", "")
	tx := seedTx(t, db, venueID, "2026-01-05", "-40.00", "ADDEBITO SDD", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, models.StatusUnmatched, reload(t, db, tx.ID).Status)
}

func TestRunReconciliationIgnoresOtherVenues(t *testing.T) {
	db := newTestDB(t)
	engine, _, _ := newEngine(db, defaultMatchConfig())
	venueID := uuid.New()
	otherVenue := uuid.New()

	seedEntry(t, db, otherVenue, "2026-01-05", "30.00", "Fornitore Epsilon", "")
	tx := seedTx(t, db, venueID, "2026-01-05", "-30.00", "PAGAMENTO FORNITORE EPSILON", models.StatusPending)

	result, err := engine.RunReconciliation(context.Background(), venueID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unmatched)
	assert.Nil(t, reload(t, db, tx.ID).MatchedEntryID)
}
