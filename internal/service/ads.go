package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"smash-rewards/internal/ads"
	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/tier"
)

// AdResult is the outcome of a rewarded ad.
type AdResult struct {
	Outcome  ads.Outcome    `json:"outcome"`
	Credited bool           `json:"credited"`
	Earning  *EarningResult `json:"earning,omitempty"`
	// Remaining is how many ads are left in the current window.
	Remaining int `json:"remaining"`
}

// AdsService credits rewarded ads, capped per 24h window.
type AdsService struct {
	store      AccountStore
	processor  *EarningProcessor
	provider   ads.Provider
	locker     lock.Locker
	policy     eligibility.Policy
	baseReward int64
	now        func() time.Time
}

// NewAdsService creates a new AdsService instance. provider serves Watch and
// may be nil when only client-reported outcomes are accepted.
func NewAdsService(
	store AccountStore,
	processor *EarningProcessor,
	provider ads.Provider,
	locker lock.Locker,
	policy eligibility.Policy,
	baseReward int64,
) *AdsService {
	return &AdsService{
		store:      store,
		processor:  processor,
		provider:   provider,
		locker:     locker,
		policy:     policy,
		baseReward: baseReward,
		now:        time.Now,
	}
}

// Reward credits a finished impression. Only a reward-granted outcome earns
// points; other outcomes change nothing.
func (s *AdsService) Reward(ctx context.Context, accountID string, res ads.Result) (*AdResult, error) {
	if !res.Outcome.Valid() {
		return nil, ErrInvalidOutcome
	}
	if res.Reward < 0 {
		return nil, ErrInvalidReward
	}

	var out *AdResult
	err := withAccountLock(ctx, s.locker, accountID, func() error {
		acc, err := loadActivated(ctx, s.store, accountID)
		if err != nil {
			return err
		}

		if res.Outcome != ads.OutcomeRewardGranted {
			out = &AdResult{Outcome: res.Outcome, Remaining: s.policy.AdsRemaining(acc, s.now())}
			return nil
		}

		now := s.now()
		if s.policy.AdWindowExpired(acc, now) {
			if acc, err = s.store.ResetDailyAds(ctx, accountID, now); err != nil {
				return upstream("reset daily ads", err)
			}
			log.Debug().Str("account_id", accountID).Msg("Daily ad window reset")
		}
		if d := s.policy.CanWatchAd(acc); !d.Allowed {
			return gateError(model.ActionAd, d)
		}

		earning, err := s.processor.Process(ctx, model.EarningEvent{
			AccountID: accountID,
			Kind:      model.ActionAd,
			Reward:    tier.ApplyAdMultiplier(s.base(res.Reward), acc.TotalReferrals),
			At:        now,
		})
		if err != nil {
			return err
		}

		out = &AdResult{
			Outcome:   res.Outcome,
			Credited:  true,
			Earning:   earning,
			Remaining: s.policy.AdsRemaining(earning.Account, now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Watch plays an ad through the server-side provider and credits the result.
func (s *AdsService) Watch(ctx context.Context, accountID, unit string) (*AdResult, error) {
	if s.provider == nil {
		return nil, newError(ErrNotEligible, "no ad provider configured")
	}

	// Refuse before playing an ad that could not be credited. Reward checks
	// again under the lock.
	acc, err := loadActivated(ctx, s.store, accountID)
	if err != nil {
		return nil, err
	}
	if s.policy.AdsRemaining(acc, s.now()) == 0 {
		return nil, gateError(model.ActionAd, eligibility.Decision{Reason: eligibility.ReasonDailyAdCap})
	}

	res, err := s.provider.Show(ctx, unit)
	if err != nil {
		return nil, upstream("show ad", err)
	}
	return s.Reward(ctx, accountID, res)
}

// base is the reward before the tier multiplier: the configured amount, or a
// smaller positive amount suggested by the provider.
func (s *AdsService) base(suggested int64) int64 {
	if suggested > 0 && suggested < s.baseReward {
		return suggested
	}
	return s.baseReward
}
