// Package eligibility decides whether time-gated actions are currently permitted.
// Every check is a pure function of account state and the supplied clock.
package eligibility

import (
	"strings"
	"time"

	"smash-rewards/internal/model"
)

// Policy holds the gate constants.
type Policy struct {
	MiningCycle time.Duration
	ChainID     int64
	AdDailyCap  int
	AdWindow    time.Duration
	// QuizLocation defines the calendar day for the once-per-day quiz.
	QuizLocation *time.Location
}

// DefaultPolicy returns the production constants.
func DefaultPolicy() Policy {
	return Policy{
		MiningCycle:  24 * time.Hour,
		ChainID:      1270,
		AdDailyCap:   5,
		AdWindow:     24 * time.Hour,
		QuizLocation: time.UTC,
	}
}

// Wallet is the client's wallet state at request time.
type Wallet struct {
	Address string
	ChainID int64
}

// Reason explains a negative answer.
type Reason string

// Reasons.
const (
	ReasonNone          Reason = ""
	ReasonNotActivated  Reason = "account not activated"
	ReasonNoWallet      Reason = "wallet not connected"
	ReasonWrongNetwork  Reason = "wrong network"
	ReasonCooldown      Reason = "mining cycle not complete"
	ReasonDailyAdCap    Reason = "daily ad limit reached"
	ReasonQuizDoneToday Reason = "quiz already completed today"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed bool
	Reason  Reason
	// Remaining is the time until the action opens, when known.
	Remaining time.Duration
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason, remaining time.Duration) Decision {
	return Decision{Reason: r, Remaining: remaining}
}

// CanMine reports whether the account may start a mining cycle.
// The wallet must be the one bound to the account and on the designated chain.
func (p Policy) CanMine(acc *model.Account, w Wallet, now time.Time) Decision {
	if !acc.IsActivated {
		return deny(ReasonNotActivated, 0)
	}
	bound := acc.Wallet()
	if bound == "" || w.Address == "" || !strings.EqualFold(bound, w.Address) {
		return deny(ReasonNoWallet, 0)
	}
	if w.ChainID != p.ChainID {
		return deny(ReasonWrongNetwork, 0)
	}
	if remaining := p.MiningRemaining(acc, now); remaining > 0 {
		return deny(ReasonCooldown, remaining)
	}
	return allow()
}

// MiningRemaining returns the time left in the current mining cycle, or 0.
func (p Policy) MiningRemaining(acc *model.Account, now time.Time) time.Duration {
	if acc.LastMining == nil {
		return 0
	}
	next := acc.LastMining.Add(p.MiningCycle)
	if now.After(next) || now.Equal(next) {
		return 0
	}
	return next.Sub(now)
}

// CanWatchAd reports whether the stored daily counter is below the cap.
// It does not consider the reset window; see AdWindowExpired.
func (p Policy) CanWatchAd(acc *model.Account) Decision {
	if acc.DailyAdsWatched >= p.AdDailyCap {
		return deny(ReasonDailyAdCap, 0)
	}
	return allow()
}

// AdWindowExpired reports whether the daily ad counter is due for a reset.
func (p Policy) AdWindowExpired(acc *model.Account, now time.Time) bool {
	if acc.LastAdReset == nil {
		return true
	}
	return !now.Before(acc.LastAdReset.Add(p.AdWindow))
}

// AdsRemaining returns how many ads can still be watched in the current window.
func (p Policy) AdsRemaining(acc *model.Account, now time.Time) int {
	if p.AdWindowExpired(acc, now) {
		return p.AdDailyCap
	}
	if left := p.AdDailyCap - acc.DailyAdsWatched; left > 0 {
		return left
	}
	return 0
}

// CanTakeQuiz reports whether no quiz has been completed on now's calendar day.
func (p Policy) CanTakeQuiz(acc *model.Account, now time.Time) Decision {
	if acc.LastQuiz == nil {
		return allow()
	}
	loc := p.location()
	if sameDay(acc.LastQuiz.In(loc), now.In(loc)) {
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
		return deny(ReasonQuizDoneToday, midnight.Sub(local))
	}
	return allow()
}

func (p Policy) location() *time.Location {
	if p.QuizLocation == nil {
		return time.UTC
	}
	return p.QuizLocation
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
