package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"smash-rewards/internal/metrics"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/referral"
	"smash-rewards/internal/repository"
)

// ActivationConfig holds the activation policy.
type ActivationConfig struct {
	MasterCode string
	Bonus      int64
	// CodeAttempts bounds regeneration when a fresh code collides.
	CodeAttempts int
}

// ActivationService turns unactivated accounts into activated ones.
type ActivationService struct {
	store    AccountStore
	resolver *ReferralResolver
	locker   lock.Locker
	cfg      ActivationConfig
	ledger   ledgerWriter

	now      func() time.Time
	generate func() (string, error)
}

// NewActivationService creates a new ActivationService instance.
func NewActivationService(store AccountStore, resolver *ReferralResolver, locker lock.Locker, cfg ActivationConfig) *ActivationService {
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 5
	}
	return &ActivationService{
		store:    store,
		resolver: resolver,
		locker:   locker,
		cfg:      cfg,
		now:      time.Now,
		generate: referral.Generate,
	}
}

// SetLedger records activation bonuses in l.
func (s *ActivationService) SetLedger(l Ledger) {
	s.ledger = ledgerWriter{ledger: l}
}

// Activate activates accountID with a sponsor code and a username.
// The master code activates without a sponsor; any other code must belong to
// an activated account, which gains one direct referral.
func (s *ActivationService) Activate(ctx context.Context, accountID, code, username string) (*model.Account, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	username = strings.TrimSpace(username)

	if !referral.IsWellFormed(code) {
		return nil, ErrInvalidCode
	}
	if !referral.IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	var activated *model.Account
	err := withAccountLock(ctx, s.locker, accountID, func() error {
		acc, err := loadAccount(ctx, s.store, accountID)
		if err != nil {
			return err
		}
		if acc.IsActivated {
			return ErrAlreadyActivated
		}
		if acc.Wallet() == "" {
			return ErrWalletRequired
		}

		sponsorID := model.MasterSponsor
		if code != s.cfg.MasterCode {
			if sponsorID, err = s.resolver.Resolve(ctx, code); err != nil {
				return err
			}
		}

		activated, err = s.activate(ctx, model.Activation{
			AccountID: accountID,
			Username:  username,
			SponsorID: sponsorID,
			Bonus:     s.cfg.Bonus,
			At:        s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.Bonus > 0 {
		at := activated.UpdatedAt
		if activated.ActivatedAt != nil {
			at = *activated.ActivatedAt
		}
		s.ledger.record(ctx, ledgerEntry(accountID, model.EntryActivationBonus, decimal.NewFromInt(s.cfg.Bonus), at))
	}

	path := "referred"
	if !activated.HasRealSponsor() {
		path = "master"
	}
	metrics.Activations.WithLabelValues(path).Inc()
	log.Info().
		Str("account_id", accountID).
		Str("sponsor", activated.Sponsor()).
		Str("referral_code", *activated.ReferralCode).
		Int64("bonus", s.cfg.Bonus).
		Msg("Account activated")

	return activated, nil
}

// activate stores the activation, drawing a new code whenever the previous
// one is already taken.
func (s *ActivationService) activate(ctx context.Context, a model.Activation) (*model.Account, error) {
	for attempt := 1; attempt <= s.cfg.CodeAttempts; attempt++ {
		code, err := s.generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}
		if code == s.cfg.MasterCode {
			continue
		}
		a.ReferralCode = code

		acc, err := s.store.Activate(ctx, a)
		switch {
		case err == nil:
			return acc, nil
		case errors.Is(err, repository.ErrCodeTaken):
			log.Debug().Str("code", code).Int("attempt", attempt).Msg("Referral code collision, regenerating")
			continue
		case errors.Is(err, repository.ErrSponsorNotFound):
			return nil, ErrReferralNotFound
		case errors.Is(err, repository.ErrAlreadyActivated):
			return nil, ErrAlreadyActivated
		case errors.Is(err, repository.ErrAccountNotFound):
			return nil, ErrAccountNotFound
		default:
			return nil, upstream("activate account", err)
		}
	}
	return nil, upstream("activate account", fmt.Errorf("no free referral code after %d attempts", s.cfg.CodeAttempts))
}
