package matching

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/NicScarpa/weiss-gestionale-sub004/internal/ledger"
	"github.com/NicScarpa/weiss-gestionale-sub004/internal/models"
)

// Scoring weights. Amount is a gate, not a gradient: a pair either matches
// within tolerance and earns the full weight, or is discarded.
const (
	amountWeight      = 0.60
	dateWeight        = 0.25
	descriptionWeight = 0.15
)

// pair is one scored transaction/entry candidate.
type pair struct {
	tx       *models.BankTransaction
	entry    ledger.JournalEntry
	score    float64
	dateTerm float64
	descTerm float64
}

// compatible reports whether the entry can be paired with the transaction
// at all: inside the date window, amounts equal in absolute value within
// tolerance, and sign-compatible (an outflow pairs with a debit entry, an
// inflow with a credit).
func compatible(tx *models.BankTransaction, entry ledger.JournalEntry, windowDays int, tolerance decimal.Decimal) bool {
	if daysBetween(tx.TransactionDate, entry.EntryDate) > float64(windowDays) {
		return false
	}
	if tx.Amount.IsNegative() == entry.Amount.IsNegative() {
		return false
	}
	diff := tx.Amount.Abs().Sub(entry.Amount.Abs()).Abs()
	return diff.Cmp(tolerance) <= 0
}

// scorePair computes the weighted confidence score for a pair that already
// passed the compatibility filter.
func scorePair(tx *models.BankTransaction, entry ledger.JournalEntry, windowDays int) pair {
	p := pair{tx: tx, entry: entry}
	p.dateTerm = dateWeight * dateProximity(tx.TransactionDate, entry.EntryDate, windowDays)
	p.descTerm = descriptionWeight * tokenOverlap(tx.Description, entry.Description+" "+entry.DocumentRef)
	p.score = amountWeight + p.dateTerm + p.descTerm
	return p
}

// dateProximity decays linearly from 1 at zero distance to 0 at the edge
// of the window.
func dateProximity(a, b time.Time, windowDays int) float64 {
	if windowDays <= 0 {
		return 0
	}
	d := daysBetween(a, b)
	if d >= float64(windowDays) {
		return 0
	}
	return 1 - d/float64(windowDays)
}

func daysBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours() / 24)
}

// tokenOverlap is the share of shared tokens over the smaller token set.
func tokenOverlap(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	matches := 0
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if set[t] && !seen[t] {
			matches++
			seen[t] = true
		}
	}
	return float64(matches) / math.Min(float64(len(ta)), float64(len(tb)))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	tokens := fields[:0]
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		tokens = append(tokens, f)
	}
	return tokens
}
