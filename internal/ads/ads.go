// Package ads models rewarded-ad outcomes and provides a mock provider.
package ads

import (
	"context"
	"time"
)

// Outcome is how an ad impression ended.
type Outcome string

// Outcomes reported by ad providers.
const (
	OutcomeRewardGranted Outcome = "reward_granted"
	OutcomeFailedToLoad  Outcome = "failed_to_load"
	OutcomeClosed        Outcome = "closed"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeRewardGranted, OutcomeFailedToLoad, OutcomeClosed:
		return true
	}
	return false
}

// Result is a finished impression. Reward is the provider's suggested base
// amount and may be zero, meaning the configured default.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reward  int64   `json:"reward"`
}

// Provider plays one rewarded ad for an ad unit.
type Provider interface {
	Show(ctx context.Context, unit string) (Result, error)
}

// MockProvider simulates a rewarded video: it waits Delay and then reports
// Outcome (reward-granted when empty).
type MockProvider struct {
	Delay   time.Duration
	Outcome Outcome
	Reward  int64
}

// Show implements Provider.
func (m *MockProvider) Show(ctx context.Context, _ string) (Result, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeClosed}, ctx.Err()
		case <-timer.C:
		}
	}

	outcome := m.Outcome
	if outcome == "" {
		outcome = OutcomeRewardGranted
	}
	if outcome != OutcomeRewardGranted {
		return Result{Outcome: outcome}, nil
	}
	return Result{Outcome: outcome, Reward: m.Reward}, nil
}
