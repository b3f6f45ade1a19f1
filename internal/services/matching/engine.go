// Package matching implements the reconciliation engine: it scores every
// eligible transaction/entry pair and commits a conflict-free one-to-one
// assignment.
package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/apperrors"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/config"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
)

// RunResult counts the status transitions performed by one run. A run on
// unchanged data is a no-op and reports zeros.
type RunResult struct {
	Matched   int `json:"matched"`
	ToReview  int `json:"to_review"`
	Unmatched int `json:"unmatched"`
}

type Engine struct {
	txRepo    *repository.BankTransactionRepository
	ledger    ledger.Ledger
	cfg       config.Matching
	tolerance decimal.Decimal
	logger    *slog.Logger
}

func NewEngine(txRepo *repository.BankTransactionRepository, lgr ledger.Ledger, cfg config.Matching, logger *slog.Logger) *Engine {
	tolerance, err := decimal.NewFromString(cfg.AmountTolerance)
	if err != nil {
		tolerance = decimal.New(1, -2) // 0.01
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		txRepo:    txRepo,
		ledger:    lgr,
		cfg:       cfg,
		tolerance: tolerance,
		logger:    logger,
	}
}

// RunReconciliation matches all PENDING and UNMATCHED transactions of the
// venue against the unconsumed candidate entries. Scoring runs in parallel;
// the commit phase is single-threaded and claims entries with conditional
// writes, so concurrent runs and concurrent human actions cannot produce a
// double assignment. Safe to retry after a partial failure: every committed
// assignment stands on its own.
func (e *Engine) RunReconciliation(ctx context.Context, venueID uuid.UUID) (*RunResult, error) {
	result := &RunResult{}

	txs, err := e.txRepo.ListUnresolved(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return result, nil
	}

	entries, err := e.loadCandidates(ctx, venueID, txs)
	if err != nil {
		return nil, err
	}

	pairs := e.scoreAll(txs, entries)
	sortPairs(pairs)

	// Greedy commit in score order: the highest-confidence pairing wins any
	// contested entry, approximating a maximum-weight bipartite matching.
	assignedTx := make(map[uuid.UUID]pair)
	assignedEntry := make(map[uuid.UUID]bool)
	for _, p := range pairs {
		if _, taken := assignedTx[p.tx.ID]; taken {
			continue
		}
		if assignedEntry[p.entry.ID] {
			continue
		}
		assignedTx[p.tx.ID] = p
		assignedEntry[p.entry.ID] = true
	}

	for i := range txs {
		tx := &txs[i]
		p, ok := assignedTx[tx.ID]
		if !ok {
			if err := e.markUnmatched(ctx, tx, result); err != nil {
				return result, err
			}
			continue
		}
		if p.score >= e.cfg.AutoThreshold && !e.hasRival(pairs, p) {
			if err := e.commitAutoMatch(ctx, tx, p, result); err != nil {
				return result, err
			}
		} else {
			if err := e.commitProposal(ctx, tx, p, result); err != nil {
				return result, err
			}
		}
	}

	e.logger.Info("reconciliation run finished",
		slog.String("venue_id", venueID.String()),
		slog.Int("matched", result.Matched),
		slog.Int("to_review", result.ToReview),
		slog.Int("unmatched", result.Unmatched),
	)
	return result, nil
}

// loadCandidates pulls unconsumed bank-register entries over the union of
// all transaction date windows, minus entries already held by a live
// TO_REVIEW proposal (an entry may back at most one proposal at a time).
func (e *Engine) loadCandidates(ctx context.Context, venueID uuid.UUID, txs []models.BankTransaction) ([]ledger.JournalEntry, error) {
	from, to := txs[0].TransactionDate, txs[0].TransactionDate
	for _, tx := range txs {
		if tx.TransactionDate.Before(from) {
			from = tx.TransactionDate
		}
		if tx.TransactionDate.After(to) {
			to = tx.TransactionDate
		}
	}
	window := time.Duration(e.cfg.DateWindowDays) * 24 * time.Hour
	entries, err := e.ledger.FindCandidateEntries(ctx, venueID, from.Add(-window), to.Add(window), true)
	if err != nil {
		return nil, err
	}

	proposed, err := e.txRepo.ProposedEntryIDs(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if len(proposed) == 0 {
		return entries, nil
	}
	held := make(map[uuid.UUID]bool, len(proposed))
	for _, id := range proposed {
		held[id] = true
	}
	eligible := entries[:0]
	for _, entry := range entries {
		if !held[entry.ID] {
			eligible = append(eligible, entry)
		}
	}
	return eligible, nil
}

// scoreAll computes scores for every compatible pair, in parallel across
// transactions, and keeps only pairs at or above the review threshold.
func (e *Engine) scoreAll(txs []models.BankTransaction, entries []ledger.JournalEntry) []pair {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		pairs []pair
	)
	work := make(chan int)
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]pair, 0)
			for i := range work {
				tx := &txs[i]
				for _, entry := range entries {
					if !compatible(tx, entry, e.cfg.DateWindowDays, e.tolerance) {
						continue
					}
					p := scorePair(tx, entry, e.cfg.DateWindowDays)
					if p.score >= e.cfg.ReviewThreshold {
						local = append(local, p)
					}
				}
			}
			mu.Lock()
			pairs = append(pairs, local...)
			mu.Unlock()
		}()
	}
	for i := range txs {
		work <- i
	}
	close(work)
	wg.Wait()
	return pairs
}

// sortPairs orders by descending score; ties break deterministically on the
// lower transaction ID, then the lower entry ID.
func sortPairs(pairs []pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if c := bytes.Compare(pairs[i].tx.ID[:], pairs[j].tx.ID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].entry.ID[:], pairs[j].entry.ID[:]) < 0
	})
}

// hasRival reports whether another surviving candidate for the same
// transaction scored within the tie margin of the winning pair. Such a
// near-tie is never auto-matched.
func (e *Engine) hasRival(pairs []pair, winner pair) bool {
	for _, p := range pairs {
		if p.tx.ID != winner.tx.ID || p.entry.ID == winner.entry.ID {
			continue
		}
		if p.score >= winner.score-e.cfg.TieMargin {
			return true
		}
	}
	return false
}

func (e *Engine) commitAutoMatch(ctx context.Context, tx *models.BankTransaction, p pair, result *RunResult) error {
	claimed, err := e.ledger.TryConsumeEntry(ctx, p.entry.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Entry taken by a concurrent run or a human action since scoring.
		return e.markUnmatched(ctx, tx, result)
	}

	now := time.Now()
	err = e.txRepo.UpdateIfStatus(e.txRepo.DB().WithContext(ctx), tx.ID,
		[]models.Status{models.StatusPending, models.StatusUnmatched},
		map[string]interface{}{
			"status":           models.StatusMatched,
			"matched_entry_id": p.entry.ID,
			"confidence":       p.score,
			"match_details":    matchDetails(p),
			"reconciled_at":    now,
		})
	if errors.Is(err, apperrors.ErrConflict) {
		// The transaction moved underneath us; give the entry back.
		if relErr := e.ledger.ReleaseEntry(ctx, p.entry.ID); relErr != nil {
			return relErr
		}
		e.logger.Warn("auto-match lost race on transaction",
			slog.String("transaction_id", tx.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}
	result.Matched++
	return nil
}

func (e *Engine) commitProposal(ctx context.Context, tx *models.BankTransaction, p pair, result *RunResult) error {
	err := e.txRepo.UpdateIfStatus(e.txRepo.DB().WithContext(ctx), tx.ID,
		[]models.Status{models.StatusPending, models.StatusUnmatched},
		map[string]interface{}{
			"status":           models.StatusToReview,
			"matched_entry_id": p.entry.ID,
			"confidence":       p.score,
			"match_details":    matchDetails(p),
		})
	if errors.Is(err, apperrors.ErrConflict) {
		e.logger.Warn("proposal lost race on transaction",
			slog.String("transaction_id", tx.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}
	result.ToReview++
	return nil
}

func (e *Engine) markUnmatched(ctx context.Context, tx *models.BankTransaction, result *RunResult) error {
	if tx.Status == models.StatusUnmatched {
		// Already there; not a transition, nothing to write.
		return nil
	}
	err := e.txRepo.UpdateIfStatus(e.txRepo.DB().WithContext(ctx), tx.ID,
		[]models.Status{models.StatusPending},
		map[string]interface{}{"status": models.StatusUnmatched})
	if errors.Is(err, apperrors.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	result.Unmatched++
	return nil
}

func matchDetails(p pair) datatypes.JSON {
	details, _ := json.Marshal(map[string]interface{}{
		"entry_id":         p.entry.ID.String(),
		"amount_term":      amountWeight,
		"date_term":        p.dateTerm,
		"description_term": p.descTerm,
		"score":            p.score,
	})
	return datatypes.JSON(details)
}
