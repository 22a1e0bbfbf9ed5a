package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"smash-rewards/internal/model"
)

// MemoryRepository is an in-process account store for development and tests.
// Returned accounts are copies; pointer fields are only ever replaced, never
// written through, so a shallow copy is enough.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*model.Account
	codes    map[string]string // referral code -> account id
	now      func() time.Time
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*model.Account),
		codes:    make(map[string]string),
		now:      time.Now,
	}
}

func clone(a *model.Account) *model.Account {
	c := *a
	return &c
}

// Create inserts a fresh, unactivated account.
func (r *MemoryRepository) Create(_ context.Context, id string, email *string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; ok {
		return nil, ErrAccountExists
	}
	now := r.now()
	acc := &model.Account{ID: id, Email: email, CreatedAt: now, UpdatedAt: now}
	r.accounts[id] = acc
	return clone(acc), nil
}

// Get retrieves an account by id.
func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return clone(acc), nil
}

// GetOrCreate retrieves an account, creating it if it doesn't exist.
func (r *MemoryRepository) GetOrCreate(ctx context.Context, id string, email *string) (*model.Account, bool, error) {
	acc, err := r.Create(ctx, id, email)
	if err == nil {
		return acc, true, nil
	}
	acc, err = r.Get(ctx, id)
	return acc, false, err
}

// GetByReferralCode finds the account that owns code.
func (r *MemoryRepository) GetByReferralCode(_ context.Context, code string) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.codes[code]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return clone(r.accounts[id]), nil
}

// Activate applies an activation and the sponsor counter update atomically.
func (r *MemoryRepository) Activate(_ context.Context, a model.Activation) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[a.AccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if acc.IsActivated {
		return nil, ErrAlreadyActivated
	}
	if _, taken := r.codes[a.ReferralCode]; taken {
		return nil, ErrCodeTaken
	}

	var sponsor *model.Account
	if a.SponsorID != model.MasterSponsor {
		sponsor = r.accounts[a.SponsorID]
		if sponsor == nil || !sponsor.IsActivated {
			return nil, ErrSponsorNotFound
		}
	}

	now := r.now()
	if sponsor != nil {
		sponsor.TotalReferrals++
		sponsor.DirectReferrals++
		sponsor.UpdatedAt = now
	}

	username, code, sponsorID, at := a.Username, a.ReferralCode, a.SponsorID, a.At
	acc.IsActivated = true
	acc.Username = &username
	acc.ReferralCode = &code
	acc.ReferredBy = &sponsorID
	acc.ActivatedAt = &at
	acc.Balance += a.Bonus
	acc.TotalEarned = acc.TotalEarned.Add(decimal.NewFromInt(a.Bonus))
	acc.UpdatedAt = now
	r.codes[code] = acc.ID

	return clone(acc), nil
}

// Credit applies one earning event to the acting account.
func (r *MemoryRepository) Credit(_ context.Context, c model.Credit) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[c.AccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if !acc.IsActivated {
		return nil, ErrNotActivated
	}

	at := c.At
	switch c.Kind {
	case model.ActionMining:
		acc.MiningStreak++
		acc.LastMining = &at
	case model.ActionAd:
		acc.DailyAdsWatched++
	case model.ActionQuiz:
		acc.KnowledgeStreak = c.QuizStreak
		acc.LastQuiz = &at
	default:
		return nil, fmt.Errorf("unknown action kind %q", c.Kind)
	}
	acc.Balance += c.Amount
	acc.TotalEarned = acc.TotalEarned.Add(decimal.NewFromInt(c.Amount))
	acc.UpdatedAt = r.now()

	return clone(acc), nil
}

// CreditCommission adds a referral commission to the sponsor's lifetime earnings.
func (r *MemoryRepository) CreditCommission(_ context.Context, sponsorID string, level model.CommissionLevel, amount decimal.Decimal) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[sponsorID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	switch level {
	case model.CommissionDirect:
		acc.DirectReferralEarnings = acc.DirectReferralEarnings.Add(amount)
	case model.CommissionIndirect:
		acc.IndirectReferralEarnings = acc.IndirectReferralEarnings.Add(amount)
	default:
		return nil, fmt.Errorf("unknown commission level %d", level)
	}
	acc.TotalEarned = acc.TotalEarned.Add(amount)
	acc.UpdatedAt = r.now()

	return clone(acc), nil
}

// ResetDailyAds zeroes the ad counter and opens a new window at at.
func (r *MemoryRepository) ResetDailyAds(_ context.Context, id string, at time.Time) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc.DailyAdsWatched = 0
	acc.LastAdReset = &at
	acc.UpdatedAt = r.now()

	return clone(acc), nil
}

// UpdateWallet binds (or clears, with nil) the account's wallet address.
func (r *MemoryRepository) UpdateWallet(_ context.Context, id string, address *string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc.WalletAddress = address
	acc.UpdatedAt = r.now()

	return clone(acc), nil
}

// Top returns the leading activated accounts ordered by field.
func (r *MemoryRepository) Top(_ context.Context, field model.RankingField, limit int) ([]*model.Account, error) {
	var key func(*model.Account) int64
	switch field {
	case model.RankByBalance:
		key = func(a *model.Account) int64 { return a.Balance }
	case model.RankByReferrals:
		key = func(a *model.Account) int64 { return int64(a.TotalReferrals) }
	case model.RankByMining:
		key = func(a *model.Account) int64 { return int64(a.MiningStreak) }
	default:
		return nil, fmt.Errorf("unknown ranking field %q", field)
	}

	r.mu.RLock()
	var out []*model.Account
	for _, a := range r.accounts {
		if a.IsActivated {
			out = append(out, clone(a))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *model.Account) int {
		if c := cmp.Compare(key(b), key(a)); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryLedger is an in-process earnings ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []model.LedgerEntry
	refs    map[model.EntryType]map[string]bool
}

// NewMemoryLedger creates an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{refs: make(map[model.EntryType]map[string]bool)}
}

// Record appends entries, all or none.
func (l *MemoryLedger) Record(_ context.Context, entries ...model.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range entries {
		if e.Reference == nil {
			continue
		}
		if l.refs[e.Type][*e.Reference] {
			return ErrDuplicateReference
		}
		for _, prev := range entries[:i] {
			if prev.Type == e.Type && prev.Reference != nil && *prev.Reference == *e.Reference {
				return ErrDuplicateReference
			}
		}
	}

	for _, e := range entries {
		if e.Reference != nil {
			if l.refs[e.Type] == nil {
				l.refs[e.Type] = make(map[string]bool)
			}
			l.refs[e.Type][*e.Reference] = true
		}
		l.entries = append(l.entries, e)
	}
	return nil
}

// History returns an account's entries, newest first.
func (l *MemoryLedger) History(_ context.Context, accountID string, limit int) ([]*model.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*model.LedgerEntry, 0, limit)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].AccountID == accountID {
			e := l.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

// HasReference reports whether an entry of type t already carries reference.
func (l *MemoryLedger) HasReference(_ context.Context, t model.EntryType, reference string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.refs[t][reference], nil
}
