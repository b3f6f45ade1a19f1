// Package workflow exposes the human actions on a transaction: confirm,
// manual match, unmatch, ignore, reject proposal. Each action is one short
// transaction guarded by optimistic checks, so two users racing on the
// same transaction or entry see exactly one winner and one ErrConflict.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
)

type Service struct {
	txRepo *repository.BankTransactionRepository
	audit  *repository.AuditRepository
	ledger ledger.Ledger
	db     *gorm.DB
}

func NewService(txRepo *repository.BankTransactionRepository, audit *repository.AuditRepository, lgr ledger.Ledger) *Service {
	return &Service{
		txRepo: txRepo,
		audit:  audit,
		ledger: lgr,
		db:     txRepo.DB(),
	}
}

// Confirm adopts the proposal stored on a TO_REVIEW transaction: the
// proposed entry is consumed and the transaction becomes MATCHED. Returns
// ErrConflict if the entry was taken by someone else in the meantime; the
// caller should re-run scoring or match manually.
func (s *Service) Confirm(ctx context.Context, txID uuid.UUID, user string) (*models.BankTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusToReview || tx.MatchedEntryID == nil {
		return nil, fmt.Errorf("%w: confirm requires a TO_REVIEW proposal, transaction is %s", apperrors.ErrInvalidState, tx.Status)
	}
	entryID := *tx.MatchedEntryID

	// Claim first: the consumed flag is the source of truth for entry
	// availability, so the claim decides the race. If the status update
	// loses a different race afterwards, the claim is compensated.
	claimed, err := s.ledger.TryConsumeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: proposed entry already consumed", apperrors.ErrConflict)
	}

	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := s.txRepo.UpdateIfStatus(dbtx, txID,
			[]models.Status{models.StatusToReview},
			map[string]interface{}{
				"status":        models.StatusMatched,
				"reconciled_at": time.Now(),
				"resolved_by":   user,
			}); err != nil {
			return err
		}
		return s.audit.Append(dbtx, txID, "confirm", nil, &entryID, user, "")
	})
	if err != nil {
		if relErr := s.ledger.ReleaseEntry(ctx, entryID); relErr != nil {
			return nil, relErr
		}
		return nil, err
	}
	return s.txRepo.GetByID(ctx, txID)
}

// ManualMatch pairs the transaction with an explicitly chosen entry. The
// confidence score is cleared: a human decision carries no score.
func (s *Service) ManualMatch(ctx context.Context, txID, entryID uuid.UUID, user string) (*models.BankTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(tx.Status, models.StatusManual) {
		return nil, fmt.Errorf("%w: cannot manually match from %s", apperrors.ErrInvalidState, tx.Status)
	}
	entry, err := s.ledger.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if tx.VenueID != entry.VenueID {
		return nil, fmt.Errorf("%w: entry belongs to a different venue", apperrors.ErrValidation)
	}

	prev := tx.MatchedEntryID
	claimed, err := s.ledger.TryConsumeEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: entry already consumed", apperrors.ErrConflict)
	}

	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := s.txRepo.UpdateIfStatus(dbtx, txID,
			[]models.Status{tx.Status},
			map[string]interface{}{
				"status":           models.StatusManual,
				"matched_entry_id": entryID,
				"confidence":       nil,
				"match_details":    nil,
				"reconciled_at":    time.Now(),
				"resolved_by":      user,
			}); err != nil {
			return err
		}
		return s.audit.Append(dbtx, txID, "manual_match", prev, &entryID, user, "")
	})
	if err != nil {
		if relErr := s.ledger.ReleaseEntry(ctx, entryID); relErr != nil {
			return nil, relErr
		}
		return nil, err
	}
	return s.txRepo.GetByID(ctx, txID)
}

// Unmatch undoes a committed pairing and releases the entry back into the
// candidate pool. The transaction becomes UNMATCHED and is eligible for
// later runs again.
func (s *Service) Unmatch(ctx context.Context, txID uuid.UUID, user string) (*models.BankTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !tx.Status.Resolved() || tx.MatchedEntryID == nil {
		return nil, fmt.Errorf("%w: unmatch requires MATCHED or MANUAL, transaction is %s", apperrors.ErrInvalidState, tx.Status)
	}
	entryID := *tx.MatchedEntryID

	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := s.txRepo.UpdateIfStatus(dbtx, txID,
			[]models.Status{models.StatusMatched, models.StatusManual},
			map[string]interface{}{
				"status":           models.StatusUnmatched,
				"matched_entry_id": nil,
				"confidence":       nil,
				"match_details":    nil,
				"reconciled_at":    nil,
				"resolved_by":      user,
			}); err != nil {
			return err
		}
		return s.audit.Append(dbtx, txID, "unmatch", &entryID, nil, user, "")
	})
	if err != nil {
		return nil, err
	}
	// Release after the forward reference is gone: a still-consumed entry is
	// merely unavailable, never double-paired.
	if err := s.ledger.ReleaseEntry(ctx, entryID); err != nil {
		return nil, err
	}
	return s.txRepo.GetByID(ctx, txID)
}

// Ignore takes the transaction out of reconciliation for good. Refused from
// MATCHED/MANUAL so a consumed entry can never be silently orphaned; unmatch
// first. IGNORED is terminal.
func (s *Service) Ignore(ctx context.Context, txID uuid.UUID, user, reason string) (*models.BankTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(tx.Status, models.StatusIgnored) {
		return nil, fmt.Errorf("%w: cannot ignore from %s", apperrors.ErrInvalidState, tx.Status)
	}

	prev := tx.MatchedEntryID
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := s.txRepo.UpdateIfStatus(dbtx, txID,
			[]models.Status{tx.Status},
			map[string]interface{}{
				"status":           models.StatusIgnored,
				"matched_entry_id": nil,
				"confidence":       nil,
				"match_details":    nil,
				"resolved_by":      user,
			}); err != nil {
			return err
		}
		return s.audit.Append(dbtx, txID, "ignore", prev, nil, user, reason)
	})
	if err != nil {
		return nil, err
	}
	return s.txRepo.GetByID(ctx, txID)
}

// RejectProposal discards a TO_REVIEW proposal without touching the entry
// (it was never consumed) and sends the transaction back to UNMATCHED.
func (s *Service) RejectProposal(ctx context.Context, txID uuid.UUID, user string) (*models.BankTransaction, error) {
	tx, err := s.txRepo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.StatusToReview {
		return nil, fmt.Errorf("%w: reject requires TO_REVIEW, transaction is %s", apperrors.ErrInvalidState, tx.Status)
	}

	prev := tx.MatchedEntryID
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		if err := s.txRepo.UpdateIfStatus(dbtx, txID,
			[]models.Status{models.StatusToReview},
			map[string]interface{}{
				"status":           models.StatusUnmatched,
				"matched_entry_id": nil,
				"confidence":       nil,
				"match_details":    nil,
				"resolved_by":      user,
			}); err != nil {
			return err
		}
		return s.audit.Append(dbtx, txID, "reject_proposal", prev, nil, user, "")
	})
	if err != nil {
		return nil, err
	}
	return s.txRepo.GetByID(ctx, txID)
}
