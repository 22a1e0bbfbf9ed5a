package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"smash-rewards/internal/model"
)

const accountColumns = `
	id, username, email, wallet_address,
	balance, total_earned, direct_referral_earnings, indirect_referral_earnings,
	is_activated, referral_code, referred_by,
	mining_streak, knowledge_streak, last_mining, last_quiz,
	daily_ads_watched, last_ad_reset, activated_at,
	total_referrals, direct_referrals, indirect_referrals,
	created_at, updated_at`

const uniqueViolation = "23505"

// AccountRepository is the PostgreSQL account store.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID, &a.Username, &a.Email, &a.WalletAddress,
		&a.Balance, &a.TotalEarned, &a.DirectReferralEarnings, &a.IndirectReferralEarnings,
		&a.IsActivated, &a.ReferralCode, &a.ReferredBy,
		&a.MiningStreak, &a.KnowledgeStreak, &a.LastMining, &a.LastQuiz,
		&a.DailyAdsWatched, &a.LastAdReset, &a.ActivatedAt,
		&a.TotalReferrals, &a.DirectReferrals, &a.IndirectReferrals,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a fresh, unactivated account.
func (r *AccountRepository) Create(ctx context.Context, id string, email *string) (*model.Account, error) {
	query := `
		INSERT INTO accounts (id, email, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id, email))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// Get retrieves an account by id.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) Get(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// GetOrCreate retrieves an account, creating it if it doesn't exist.
// The bool result reports whether the account was created.
func (r *AccountRepository) GetOrCreate(ctx context.Context, id string, email *string) (*model.Account, bool, error) {
	acc, err := r.Get(ctx, id)
	if err == nil {
		return acc, false, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, false, err
	}

	acc, err = r.Create(ctx, id, email)
	if err != nil {
		// Another request may have created the account in between.
		if errors.Is(err, ErrAccountExists) {
			acc, err = r.Get(ctx, id)
			return acc, false, err
		}
		return nil, false, err
	}
	return acc, true, nil
}

// GetByReferralCode finds the account that owns code.
func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by referral code: %w", err)
	}
	return acc, nil
}

// Activate marks the account activated, credits the bonus and, for a real
// sponsor, bumps the sponsor's referral counters. All in one transaction.
func (r *AccountRepository) Activate(ctx context.Context, a model.Activation) (*model.Account, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		UPDATE accounts
		SET is_activated = TRUE,
			username = $2,
			referral_code = $3,
			referred_by = $4,
			balance = balance + $5,
			total_earned = total_earned + $5,
			activated_at = $6,
			updated_at = NOW()
		WHERE id = $1 AND is_activated = FALSE
		RETURNING ` + accountColumns

	acc, err := scanAccount(tx.QueryRow(ctx, query, a.AccountID, a.Username, a.ReferralCode, a.SponsorID, a.Bonus, a.At))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, r.activationMiss(ctx, a.AccountID)
		case isUniqueViolation(err):
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("failed to activate account: %w", err)
	}

	if a.SponsorID != model.MasterSponsor {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET total_referrals = total_referrals + 1,
				direct_referrals = direct_referrals + 1,
				updated_at = NOW()
			WHERE id = $1 AND is_activated = TRUE
		`, a.SponsorID)
		if err != nil {
			return nil, fmt.Errorf("failed to update sponsor: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrSponsorNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit activation: %w", err)
	}
	return acc, nil
}

// activationMiss explains why the activation UPDATE matched no row.
func (r *AccountRepository) activationMiss(ctx context.Context, id string) error {
	acc, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if acc.IsActivated {
		return ErrAlreadyActivated
	}
	return fmt.Errorf("activation of %s matched no row", id)
}

// Credit applies one earning event to the acting account: balance and
// lifetime earnings plus the bookkeeping for the event's kind.
func (r *AccountRepository) Credit(ctx context.Context, c model.Credit) (*model.Account, error) {
	var set string
	args := []any{c.AccountID, c.Amount}
	switch c.Kind {
	case model.ActionMining:
		set = `mining_streak = mining_streak + 1, last_mining = $3`
		args = append(args, c.At)
	case model.ActionAd:
		set = `daily_ads_watched = daily_ads_watched + 1`
	case model.ActionQuiz:
		set = `knowledge_streak = $3, last_quiz = $4`
		args = append(args, c.QuizStreak, c.At)
	default:
		return nil, fmt.Errorf("unknown action kind %q", c.Kind)
	}

	query := `
		UPDATE accounts
		SET balance = balance + $2,
			total_earned = total_earned + $2,
			` + set + `,
			updated_at = NOW()
		WHERE id = $1 AND is_activated = TRUE
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.notActivated(ctx, c.AccountID)
		}
		return nil, fmt.Errorf("failed to credit account: %w", err)
	}
	return acc, nil
}

// CreditCommission adds a referral commission to the sponsor's lifetime
// earnings. The sponsor's balance is not touched.
func (r *AccountRepository) CreditCommission(ctx context.Context, sponsorID string, level model.CommissionLevel, amount decimal.Decimal) (*model.Account, error) {
	var column string
	switch level {
	case model.CommissionDirect:
		column = "direct_referral_earnings"
	case model.CommissionIndirect:
		column = "indirect_referral_earnings"
	default:
		return nil, fmt.Errorf("unknown commission level %d", level)
	}

	query := `
		UPDATE accounts
		SET ` + column + ` = ` + column + ` + $2::numeric,
			total_earned = total_earned + $2::numeric,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, sponsorID, amount.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to credit commission: %w", err)
	}
	return acc, nil
}

// ResetDailyAds zeroes the ad counter and opens a new window at at.
func (r *AccountRepository) ResetDailyAds(ctx context.Context, id string, at time.Time) (*model.Account, error) {
	query := `
		UPDATE accounts
		SET daily_ads_watched = 0, last_ad_reset = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to reset daily ads: %w", err)
	}
	return acc, nil
}

// UpdateWallet binds (or clears, with nil) the account's wallet address.
func (r *AccountRepository) UpdateWallet(ctx context.Context, id string, address *string) (*model.Account, error) {
	query := `
		UPDATE accounts
		SET wallet_address = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.pool.QueryRow(ctx, query, id, address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	return acc, nil
}

// Top returns the leading activated accounts ordered by field.
func (r *AccountRepository) Top(ctx context.Context, field model.RankingField, limit int) ([]*model.Account, error) {
	var order string
	switch field {
	case model.RankByBalance:
		order = "balance"
	case model.RankByReferrals:
		order = "total_referrals"
	case model.RankByMining:
		order = "mining_streak"
	default:
		return nil, fmt.Errorf("unknown ranking field %q", field)
	}

	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE is_activated = TRUE
		ORDER BY ` + order + ` DESC, created_at ASC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var accounts []*model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) notActivated(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotActivated
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
