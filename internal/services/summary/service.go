// Package summary is the read-only rollup over the transaction store. No
// mutation, safe to call concurrently with imports, runs and workflow
// actions.
package summary

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/repository"
)

// AgingAlert flags a transaction left unresolved beyond the configured age.
type AgingAlert struct {
	TransactionID   uuid.UUID       `json:"transaction_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Status          models.Status   `json:"status"`
	AgeDays         int             `json:"age_days"`
}

type Summary struct {
	CountsByStatus    map[models.Status]int64 `json:"counts_by_status"`
	TotalImported     decimal.Decimal         `json:"total_imported"`
	TotalMatched      decimal.Decimal         `json:"total_matched"`
	PercentReconciled float64                 `json:"percent_reconciled"`
	AgingAlerts       []AgingAlert            `json:"aging_alerts"`
}

type Service struct {
	txRepo     *repository.BankTransactionRepository
	agingAfter time.Duration
}

func NewService(txRepo *repository.BankTransactionRepository, agingAfter time.Duration) *Service {
	return &Service{txRepo: txRepo, agingAfter: agingAfter}
}

// GetSummary aggregates the current state for the venue. Amount sums are
// computed over decimals in Go; only the per-status counts go through SQL.
func (s *Service) GetSummary(ctx context.Context, venueID uuid.UUID) (*Summary, error) {
	counts, err := s.txRepo.CountByStatus(ctx, venueID)
	if err != nil {
		return nil, err
	}

	out := &Summary{
		CountsByStatus: make(map[models.Status]int64),
		TotalImported:  decimal.Zero,
		TotalMatched:   decimal.Zero,
		AgingAlerts:    []AgingAlert{},
	}
	for _, row := range counts {
		out.CountsByStatus[row.Status] = row.Count
	}

	txs, err := s.txRepo.ListByVenue(ctx, venueID, nil, 0)
	if err != nil {
		return nil, err
	}

	var total, resolved int64
	cutoff := time.Now().Add(-s.agingAfter)
	for _, tx := range txs {
		out.TotalImported = out.TotalImported.Add(tx.Amount)
		if tx.Status == models.StatusIgnored {
			continue
		}
		total++
		if tx.Status.Resolved() {
			resolved++
			out.TotalMatched = out.TotalMatched.Add(tx.Amount)
			continue
		}
		if tx.TransactionDate.Before(cutoff) {
			out.AgingAlerts = append(out.AgingAlerts, AgingAlert{
				TransactionID:   tx.ID,
				TransactionDate: tx.TransactionDate,
				Amount:          tx.Amount,
				Description:     tx.Description,
				Status:          tx.Status,
				AgeDays:         int(time.Since(tx.TransactionDate).Hours() / 24),
			})
		}
	}
	if total > 0 {
		out.PercentReconciled = float64(resolved) / float64(total) * 100
	}
	return out, nil
}
