package service

import (
	"context"

	"smash-rewards/internal/model"
	"smash-rewards/internal/tier"
)

// Ranking limits.
const (
	DefaultRankingLimit = 10
	MaxRankingLimit     = 100
)

// RankEntry is one leaderboard row.
type RankEntry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Value     int64  `json:"value"`
	Tier      string `json:"tier"`
}

// RankingService serves the leaderboards.
type RankingService struct {
	store AccountStore
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(store AccountStore) *RankingService {
	return &RankingService{store: store}
}

// Rankings returns the top activated accounts by field. A limit outside
// 1..MaxRankingLimit falls back to the default or the maximum.
func (s *RankingService) Rankings(ctx context.Context, by model.RankingField, limit int) ([]RankEntry, error) {
	if !by.Valid() {
		return nil, ErrInvalidRanking
	}
	switch {
	case limit <= 0:
		limit = DefaultRankingLimit
	case limit > MaxRankingLimit:
		limit = MaxRankingLimit
	}

	accounts, err := s.store.Top(ctx, by, limit)
	if err != nil {
		return nil, upstream("load rankings", err)
	}

	entries := make([]RankEntry, 0, len(accounts))
	for i, acc := range accounts {
		e := RankEntry{Rank: i + 1, AccountID: acc.ID}
		if acc.Username != nil {
			e.Username = *acc.Username
		}
		switch by {
		case model.RankByBalance:
			e.Value = acc.Balance
			e.Tier = tier.Referral(acc.TotalReferrals).Name
		case model.RankByReferrals:
			e.Value = int64(acc.TotalReferrals)
			e.Tier = tier.Referral(acc.TotalReferrals).Name
		case model.RankByMining:
			e.Value = int64(acc.MiningStreak)
			e.Tier = tier.Mining(acc.MiningStreak).Name
		}
		entries = append(entries, e)
	}
	return entries, nil
}
