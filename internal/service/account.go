// Package service implements activation, earning and the user actions on top
// of the account store.
package service

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"smash-rewards/internal/chain"
	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/repository"
	"smash-rewards/internal/tier"
)

// BalanceReader reads native wallet balances.
type BalanceReader interface {
	Balance(ctx context.Context, address string) (*big.Int, error)
}

// Availability is the gate answer for one action.
type Availability struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

func availability(d eligibility.Decision) Availability {
	return Availability{
		Allowed:          d.Allowed,
		Reason:           string(d.Reason),
		RemainingSeconds: int64(d.Remaining / time.Second),
	}
}

// Profile is an account with everything derived from it.
type Profile struct {
	Account      *model.Account `json:"account"`
	ReferralTier tier.Tier      `json:"referral_tier"`
	MiningTier   tier.Tier      `json:"mining_tier"`
	AdMultiplier string         `json:"ad_multiplier"`
	Mining       Availability   `json:"mining"`
	Ads          Availability   `json:"ads"`
	AdsRemaining int            `json:"ads_remaining"`
	Quiz         Availability   `json:"quiz"`
	Achievements []tier.Track   `json:"achievements"`
}

// WalletInfo is a bound wallet and its native balance, when known.
type WalletInfo struct {
	Account *model.Account `json:"account"`
	Address string         `json:"address"`
	// Balance is in whole native tokens; empty if the chain was unreachable.
	Balance string `json:"balance,omitempty"`
}

// AccountService handles account lifecycle and read models.
type AccountService struct {
	store  AccountStore
	chain  BalanceReader
	locker lock.Locker
	policy eligibility.Policy
	ledger Ledger
	now    func() time.Time
}

// NewAccountService creates a new AccountService instance. balances may be nil.
func NewAccountService(store AccountStore, balances BalanceReader, locker lock.Locker, policy eligibility.Policy) *AccountService {
	return &AccountService{
		store:  store,
		chain:  balances,
		locker: locker,
		policy: policy,
		now:    time.Now,
	}
}

// SetLedger enables the earnings history.
func (s *AccountService) SetLedger(l Ledger) {
	s.ledger = l
}

// EnsureAccount returns the account for id, creating it on first sight.
// The bool result reports whether it was created.
func (s *AccountService) EnsureAccount(ctx context.Context, id string, email *string) (*model.Account, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, newError(ErrInvalidInput, "missing account id")
	}
	acc, created, err := s.store.GetOrCreate(ctx, id, email)
	if err != nil {
		return nil, false, upstream("ensure account", err)
	}
	if created {
		log.Info().Str("account_id", id).Msg("Account created")
	}
	return acc, created, nil
}

// BindWallet stores address as the account's wallet, in checksum form.
func (s *AccountService) BindWallet(ctx context.Context, id, address string) (*WalletInfo, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	checksum := common.HexToAddress(address).Hex()

	var acc *model.Account
	err := withAccountLock(ctx, s.locker, id, func() error {
		var err error
		acc, err = s.store.UpdateWallet(ctx, id, &checksum)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return upstream("update wallet", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	info := &WalletInfo{Account: acc, Address: checksum}
	if s.chain != nil {
		bal, err := s.chain.Balance(ctx, checksum)
		if err != nil {
			log.Warn().Err(err).Str("account_id", id).Msg("Wallet balance unavailable")
		} else {
			info.Balance = chain.FromWei(bal)
		}
	}
	return info, nil
}

// Profile returns the account with tiers, gate states and achievements.
func (s *AccountService) Profile(ctx context.Context, id string) (*Profile, error) {
	acc, err := loadAccount(ctx, s.store, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bound := eligibility.Wallet{Address: acc.Wallet(), ChainID: s.policy.ChainID}

	adsAvail := Availability{Allowed: true}
	remaining := s.policy.AdsRemaining(acc, now)
	switch {
	case !acc.IsActivated:
		adsAvail = availability(eligibility.Decision{Reason: eligibility.ReasonNotActivated})
	case remaining == 0:
		adsAvail = availability(eligibility.Decision{Reason: eligibility.ReasonDailyAdCap})
	}

	quiz := s.policy.CanTakeQuiz(acc, now)
	if !acc.IsActivated {
		quiz = eligibility.Decision{Reason: eligibility.ReasonNotActivated}
	}

	return &Profile{
		Account:      acc,
		ReferralTier: tier.Referral(acc.TotalReferrals),
		MiningTier:   tier.Mining(acc.MiningStreak),
		AdMultiplier: tier.AdMultiplier(acc.TotalReferrals).StringFixed(1),
		Mining:       availability(s.policy.CanMine(acc, bound, now)),
		Ads:          adsAvail,
		AdsRemaining: remaining,
		Quiz:         availability(quiz),
		Achievements: tier.Achievements(acc.MiningStreak, acc.KnowledgeStreak, acc.TotalReferrals),
	}, nil
}

// History returns the account's most recent ledger entries. Without a ledger
// the history is empty.
func (s *AccountService) History(ctx context.Context, id string, limit int) ([]*model.LedgerEntry, error) {
	if _, err := loadAccount(ctx, s.store, id); err != nil {
		return nil, err
	}
	if s.ledger == nil {
		return []*model.LedgerEntry{}, nil
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	entries, err := s.ledger.History(ctx, id, limit)
	if err != nil {
		return nil, upstream("load history", err)
	}
	return entries, nil
}
