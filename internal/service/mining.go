package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"smash-rewards/internal/chain"
	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
)

// PaymentVerifier confirms on-chain fee payments.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, p chain.Payment) (*chain.Receipt, error)
}

// MiningConfig holds the mining policy.
type MiningConfig struct {
	Reward   int64
	Treasury string
	// Fee is the minimum payment in wei.
	Fee *big.Int
}

// MiningRequest starts a mining cycle. WalletAddress and ChainID are the
// client's wallet state; TxHash is the fee payment.
type MiningRequest struct {
	AccountID     string
	WalletAddress string
	ChainID       int64
	TxHash        string
}

// MiningResult is a started mining cycle.
type MiningResult struct {
	*EarningResult
	Payment     *chain.Receipt `json:"payment"`
	NextCycleAt time.Time      `json:"next_cycle_at"`
}

// MiningService starts 24h mining cycles paid for with an on-chain fee.
type MiningService struct {
	store     AccountStore
	processor *EarningProcessor
	verifier  PaymentVerifier
	locker    lock.Locker
	policy    eligibility.Policy
	cfg       MiningConfig
	now       func() time.Time
}

// NewMiningService creates a new MiningService instance.
func NewMiningService(
	store AccountStore,
	processor *EarningProcessor,
	verifier PaymentVerifier,
	locker lock.Locker,
	policy eligibility.Policy,
	cfg MiningConfig,
) *MiningService {
	return &MiningService{
		store:     store,
		processor: processor,
		verifier:  verifier,
		locker:    locker,
		policy:    policy,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start verifies the fee payment and credits the mining reward.
func (s *MiningService) Start(ctx context.Context, req MiningRequest) (*MiningResult, error) {
	req.TxHash = strings.ToLower(strings.TrimSpace(req.TxHash))
	if !chain.IsTxHash(req.TxHash) {
		return nil, ErrInvalidTxHash
	}

	var result *MiningResult
	err := withAccountLock(ctx, s.locker, req.AccountID, func() error {
		acc, err := loadAccount(ctx, s.store, req.AccountID)
		if err != nil {
			return err
		}

		now := s.now()
		wallet := eligibility.Wallet{Address: req.WalletAddress, ChainID: req.ChainID}
		if d := s.policy.CanMine(acc, wallet, now); !d.Allowed {
			return gateError(model.ActionMining, d)
		}

		used, err := s.processor.ledger.used(ctx, model.EntryMining, req.TxHash)
		if err != nil {
			return upstream("check payment reference", err)
		}
		if used {
			return ErrPaymentReused
		}

		receipt, err := s.verifier.VerifyPayment(ctx, chain.Payment{
			TxHash:   req.TxHash,
			From:     acc.Wallet(),
			To:       s.cfg.Treasury,
			MinValue: s.cfg.Fee,
		})
		if err != nil {
			switch {
			case errors.Is(err, chain.ErrInvalidTxHash):
				return ErrInvalidTxHash
			case errors.Is(err, chain.ErrPaymentRejected):
				log.Warn().Err(err).Str("account_id", req.AccountID).Str("tx_hash", req.TxHash).Msg("Mining fee rejected")
				return fmt.Errorf("%w (%w)", ErrPaymentNotVerified, err)
			}
			return upstream("verify payment", err)
		}

		earning, err := s.processor.Process(ctx, model.EarningEvent{
			AccountID: req.AccountID,
			Kind:      model.ActionMining,
			Reward:    s.cfg.Reward,
			At:        now,
			Reference: req.TxHash,
		})
		if err != nil {
			return err
		}

		result = &MiningResult{
			EarningResult: earning,
			Payment:       receipt,
			NextCycleAt:   now.Add(s.policy.MiningCycle),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
