// Package model defines the data models for the Smash rewards service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MasterSponsor is the sponsor reference of accounts activated with the
// protocol master code. It never names a real account.
const MasterSponsor = "MASTER"

// Account represents a user's persistent record: balance, streaks and
// position in the referral tree.
type Account struct {
	ID            string  `db:"id" bson:"_id" json:"id"`
	Username      *string `db:"username" bson:"username,omitempty" json:"username,omitempty"`
	Email         *string `db:"email" bson:"email,omitempty" json:"email,omitempty"`
	WalletAddress *string `db:"wallet_address" bson:"wallet_address,omitempty" json:"wallet_address,omitempty"`

	// Balance only ever receives whole points. Commissions are exact
	// fractions of a reward, so lifetime and referral earnings are decimal.
	Balance                  int64           `db:"balance" bson:"balance" json:"balance"`
	TotalEarned              decimal.Decimal `db:"total_earned" bson:"total_earned" json:"total_earned"`
	DirectReferralEarnings   decimal.Decimal `db:"direct_referral_earnings" bson:"direct_referral_earnings" json:"direct_referral_earnings"`
	IndirectReferralEarnings decimal.Decimal `db:"indirect_referral_earnings" bson:"indirect_referral_earnings" json:"indirect_referral_earnings"`

	IsActivated     bool       `db:"is_activated" bson:"is_activated" json:"is_activated"`
	ReferralCode    *string    `db:"referral_code" bson:"referral_code,omitempty" json:"referral_code,omitempty"`
	ReferredBy      *string    `db:"referred_by" bson:"referred_by,omitempty" json:"referred_by,omitempty"`
	MiningStreak    int        `db:"mining_streak" bson:"mining_streak" json:"mining_streak"`
	KnowledgeStreak int        `db:"knowledge_streak" bson:"knowledge_streak" json:"knowledge_streak"`
	LastMining      *time.Time `db:"last_mining" bson:"last_mining,omitempty" json:"last_mining,omitempty"`
	LastQuiz        *time.Time `db:"last_quiz" bson:"last_quiz,omitempty" json:"last_quiz,omitempty"`
	DailyAdsWatched int        `db:"daily_ads_watched" bson:"daily_ads_watched" json:"daily_ads_watched"`
	LastAdReset     *time.Time `db:"last_ad_reset" bson:"last_ad_reset,omitempty" json:"last_ad_reset,omitempty"`
	ActivatedAt     *time.Time `db:"activated_at" bson:"activated_at,omitempty" json:"activated_at,omitempty"`

	TotalReferrals    int `db:"total_referrals" bson:"total_referrals" json:"total_referrals"`
	DirectReferrals   int `db:"direct_referrals" bson:"direct_referrals" json:"direct_referrals"`
	IndirectReferrals int `db:"indirect_referrals" bson:"indirect_referrals" json:"indirect_referrals"`

	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// Sponsor returns the sponsor reference, or "" when the account has none yet.
func (a *Account) Sponsor() string {
	if a.ReferredBy == nil {
		return ""
	}
	return *a.ReferredBy
}

// HasRealSponsor reports whether the account was referred by another account
// rather than by the master code.
func (a *Account) HasRealSponsor() bool {
	s := a.Sponsor()
	return s != "" && s != MasterSponsor
}

// Wallet returns the bound wallet address or "".
func (a *Account) Wallet() string {
	if a.WalletAddress == nil {
		return ""
	}
	return *a.WalletAddress
}

// ActionKind identifies the user action behind an earning event.
type ActionKind string

// Action kinds.
const (
	ActionMining ActionKind = "mining"
	ActionAd     ActionKind = "ad"
	ActionQuiz   ActionKind = "quiz"
)

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionMining, ActionAd, ActionQuiz:
		return true
	}
	return false
}

// EarningEvent is a completed user action waiting to be credited.
// It is never persisted.
type EarningEvent struct {
	AccountID string
	Kind      ActionKind
	Reward    int64
	At        time.Time
	// QuizStreak is the knowledge streak to store for quiz events.
	QuizStreak int
	// Reference identifies the external proof of the action, such as the
	// mining fee transaction hash.
	Reference string
}

// Credit describes the field updates applied to the acting account for one
// earning event.
type Credit struct {
	AccountID  string
	Kind       ActionKind
	Amount     int64
	At         time.Time
	QuizStreak int
}

// CommissionLevel is the hop at which a referral commission is paid.
type CommissionLevel int

// Commission levels.
const (
	CommissionDirect   CommissionLevel = 1
	CommissionIndirect CommissionLevel = 2
)

// String returns the level name used in logs and metrics.
func (l CommissionLevel) String() string {
	switch l {
	case CommissionDirect:
		return "direct"
	case CommissionIndirect:
		return "indirect"
	}
	return "unknown"
}

// MarshalText encodes the level by name.
func (l CommissionLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Activation holds the field updates for an account activation.
type Activation struct {
	AccountID    string
	Username     string
	ReferralCode string
	// SponsorID is MasterSponsor or the id of an activated account.
	SponsorID string
	Bonus     int64
	At        time.Time
}

// RankingField selects the leaderboard ordering.
type RankingField string

// Leaderboards.
const (
	RankByBalance   RankingField = "balance"
	RankByReferrals RankingField = "referrals"
	RankByMining    RankingField = "mining"
)

// Valid reports whether f is a known ranking field.
func (f RankingField) Valid() bool {
	switch f {
	case RankByBalance, RankByReferrals, RankByMining:
		return true
	}
	return false
}

// LedgerEntry records one credit for an account's earnings history. Account
// counters remain authoritative; the ledger is an audit trail.
type LedgerEntry struct {
	ID        string          `db:"id" bson:"_id" json:"id"`
	AccountID string          `db:"account_id" bson:"account_id" json:"account_id"`
	Type      EntryType       `db:"type" bson:"type" json:"type"`
	Amount    decimal.Decimal `db:"amount" bson:"amount" json:"amount"`
	// SourceID is the acting account a commission was paid for.
	SourceID  *string   `db:"source_id" bson:"source_id,omitempty" json:"source_id,omitempty"`
	Reference *string   `db:"reference" bson:"reference,omitempty" json:"reference,omitempty"`
	CreatedAt time.Time `db:"created_at" bson:"created_at" json:"created_at"`
}

// EntryType categorizes ledger entries.
type EntryType string

// Ledger entry types.
const (
	EntryActivationBonus    EntryType = "activation_bonus"
	EntryMining             EntryType = "mining"
	EntryAd                 EntryType = "ad"
	EntryQuiz               EntryType = "quiz"
	EntryCommissionDirect   EntryType = "commission_direct"
	EntryCommissionIndirect EntryType = "commission_indirect"
)

// EntryTypeFor returns the ledger type of an action credit.
func EntryTypeFor(kind ActionKind) EntryType {
	return EntryType(kind)
}

// CommissionEntryType returns the ledger type of a commission level.
func CommissionEntryType(l CommissionLevel) EntryType {
	if l == CommissionIndirect {
		return EntryCommissionIndirect
	}
	return EntryCommissionDirect
}
