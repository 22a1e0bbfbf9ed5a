package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/repository"
)

// AccountStore is the record store every service works against.
// The Postgres, MongoDB and in-memory repositories implement it.
type AccountStore interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	GetOrCreate(ctx context.Context, id string, email *string) (*model.Account, bool, error)
	GetByReferralCode(ctx context.Context, code string) (*model.Account, error)
	Activate(ctx context.Context, a model.Activation) (*model.Account, error)
	Credit(ctx context.Context, c model.Credit) (*model.Account, error)
	CreditCommission(ctx context.Context, sponsorID string, level model.CommissionLevel, amount decimal.Decimal) (*model.Account, error)
	ResetDailyAds(ctx context.Context, id string, at time.Time) (*model.Account, error)
	UpdateWallet(ctx context.Context, id string, address *string) (*model.Account, error)
	Top(ctx context.Context, field model.RankingField, limit int) ([]*model.Account, error)
}

const lockTimeout = 5 * time.Second

// withAccountLock runs fn while holding the account's lock.
func withAccountLock(ctx context.Context, locker lock.Locker, accountID string, fn func() error) error {
	err := locker.WithLockContext(ctx, accountID, lockTimeout, fn)
	if errors.Is(err, lock.ErrLockTimeout) {
		return ErrBusy
	}
	return err
}

func loadAccount(ctx context.Context, store AccountStore, id string) (*model.Account, error) {
	acc, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, upstream("load account", err)
	}
	return acc, nil
}

func loadActivated(ctx context.Context, store AccountStore, id string) (*model.Account, error) {
	acc, err := loadAccount(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if !acc.IsActivated {
		return nil, ErrNotActivated
	}
	return acc, nil
}
