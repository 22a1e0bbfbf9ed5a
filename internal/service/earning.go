package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"smash-rewards/internal/metrics"
	"smash-rewards/internal/model"
	"smash-rewards/internal/repository"
)

// Commission is one referral commission paid for an earning event.
type Commission struct {
	SponsorID string                `json:"sponsor_id"`
	Level     model.CommissionLevel `json:"level"`
	Amount    decimal.Decimal       `json:"amount"`
}

// EarningResult is the outcome of processing one earning event.
type EarningResult struct {
	// Account is the acting account after the credit.
	Account     *model.Account `json:"account"`
	Credited    int64          `json:"credited"`
	Commissions []Commission   `json:"commissions,omitempty"`
	// PartialCommission is set when a commission step failed after the
	// acting account was credited. The lost commission is not retried.
	PartialCommission bool `json:"partial_commission,omitempty"`
}

// EarningProcessor credits the acting account for an event and pays
// commissions two levels up the sponsor chain.
type EarningProcessor struct {
	store    AccountStore
	direct   decimal.Decimal
	indirect decimal.Decimal
	ledger   ledgerWriter
}

// NewEarningProcessor creates a processor with the given commission rates.
func NewEarningProcessor(store AccountStore, direct, indirect decimal.Decimal) *EarningProcessor {
	return &EarningProcessor{store: store, direct: direct, indirect: indirect}
}

// SetLedger records every processed event in l.
func (p *EarningProcessor) SetLedger(l Ledger) {
	p.ledger = ledgerWriter{ledger: l}
}

// Commission returns reward * rate for a level, without rounding.
func (p *EarningProcessor) Commission(reward int64, level model.CommissionLevel) decimal.Decimal {
	rate := p.direct
	if level == model.CommissionIndirect {
		rate = p.indirect
	}
	return decimal.NewFromInt(reward).Mul(rate)
}

// Process applies ev. A failure to credit the acting account aborts the event
// with nothing changed. Commission failures are logged and reported on the
// result only.
func (p *EarningProcessor) Process(ctx context.Context, ev model.EarningEvent) (*EarningResult, error) {
	if !ev.Kind.Valid() {
		return nil, newError(ErrInvalidInput, fmt.Sprintf("unknown action kind %q", ev.Kind))
	}
	if ev.Reward < 0 {
		return nil, ErrInvalidReward
	}

	acc, err := p.store.Credit(ctx, model.Credit{
		AccountID:  ev.AccountID,
		Kind:       ev.Kind,
		Amount:     ev.Reward,
		At:         ev.At,
		QuizStreak: ev.QuizStreak,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		case errors.Is(err, repository.ErrNotActivated):
			return nil, ErrNotActivated
		}
		return nil, upstream("credit account", err)
	}

	kind := string(ev.Kind)
	metrics.EarningEvents.WithLabelValues(kind).Inc()
	metrics.PointsCredited.WithLabelValues(kind).Add(float64(ev.Reward))

	res := &EarningResult{Account: acc, Credited: ev.Reward}
	if ev.Reward > 0 {
		p.payCommissions(ctx, acc, ev, res)
	}
	p.ledger.record(ctx, earningEntries(ev, res)...)

	log.Info().
		Str("account_id", ev.AccountID).
		Str("kind", kind).
		Int64("amount", ev.Reward).
		Int("commissions", len(res.Commissions)).
		Bool("partial_commission", res.PartialCommission).
		Msg("Earning event processed")

	return res, nil
}

func (p *EarningProcessor) payCommissions(ctx context.Context, acc *model.Account, ev model.EarningEvent, res *EarningResult) {
	if !acc.HasRealSponsor() {
		return
	}

	direct, ok := p.pay(ctx, acc.Sponsor(), model.CommissionDirect, ev, res)
	if !ok || !direct.HasRealSponsor() {
		return
	}

	// Two hops only, whatever lies beyond the grand-sponsor.
	p.pay(ctx, direct.Sponsor(), model.CommissionIndirect, ev, res)
}

// pay credits one commission and returns the sponsor's record, which the next
// hop needs for its own sponsor reference.
func (p *EarningProcessor) pay(ctx context.Context, sponsorID string, level model.CommissionLevel, ev model.EarningEvent, res *EarningResult) (*model.Account, bool) {
	amount := p.Commission(ev.Reward, level)

	var sponsor *model.Account
	var err error
	if amount.IsPositive() {
		sponsor, err = p.store.CreditCommission(ctx, sponsorID, level, amount)
	} else {
		sponsor, err = p.store.Get(ctx, sponsorID)
	}
	if err != nil {
		res.PartialCommission = true
		metrics.CommissionFailures.WithLabelValues(level.String()).Inc()
		log.Error().
			Err(err).
			Str("account_id", ev.AccountID).
			Str("sponsor_id", sponsorID).
			Str("level", level.String()).
			Str("kind", string(ev.Kind)).
			Stringer("amount", amount).
			Msg("Referral commission lost")
		return nil, false
	}

	if amount.IsPositive() {
		res.Commissions = append(res.Commissions, Commission{SponsorID: sponsorID, Level: level, Amount: amount})
		metrics.Commissions.WithLabelValues(level.String()).Add(amount.InexactFloat64())
	}
	return sponsor, true
}
