package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"smash-rewards/internal/metrics"
	"smash-rewards/internal/model"
)

// Ledger stores the earnings history.
type Ledger interface {
	Record(ctx context.Context, entries ...model.LedgerEntry) error
	History(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error)
	HasReference(ctx context.Context, t model.EntryType, reference string) (bool, error)
}

// History limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// ledgerWriter records entries when a ledger is configured. A failed write
// never undoes the credit it describes.
type ledgerWriter struct {
	ledger Ledger
}

func (w ledgerWriter) record(ctx context.Context, entries ...model.LedgerEntry) {
	if w.ledger == nil || len(entries) == 0 {
		return
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
	}
	if err := w.ledger.Record(ctx, entries...); err != nil {
		metrics.LedgerFailures.Inc()
		log.Error().
			Err(err).
			Str("account_id", entries[0].AccountID).
			Int("entries", len(entries)).
			Msg("Ledger write failed")
	}
}

func (w ledgerWriter) used(ctx context.Context, t model.EntryType, reference string) (bool, error) {
	if w.ledger == nil {
		return false, nil
	}
	return w.ledger.HasReference(ctx, t, reference)
}

func ledgerEntry(accountID string, t model.EntryType, amount decimal.Decimal, at time.Time) model.LedgerEntry {
	return model.LedgerEntry{AccountID: accountID, Type: t, Amount: amount, CreatedAt: at}
}

// earningEntries describes a processed event: the acting credit followed by
// every commission paid for it.
func earningEntries(ev model.EarningEvent, res *EarningResult) []model.LedgerEntry {
	acting := ledgerEntry(ev.AccountID, model.EntryTypeFor(ev.Kind), decimal.NewFromInt(res.Credited), ev.At)
	if ev.Reference != "" {
		ref := ev.Reference
		acting.Reference = &ref
	}

	entries := []model.LedgerEntry{acting}
	for _, c := range res.Commissions {
		e := ledgerEntry(c.SponsorID, model.CommissionEntryType(c.Level), c.Amount, ev.At)
		source := ev.AccountID
		e.SourceID = &source
		entries = append(entries, e)
	}
	return entries
}
