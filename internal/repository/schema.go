package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		username VARCHAR(64),
		email VARCHAR(255),
		wallet_address VARCHAR(42),
		balance BIGINT NOT NULL DEFAULT 0,
		total_earned NUMERIC NOT NULL DEFAULT 0,
		direct_referral_earnings NUMERIC NOT NULL DEFAULT 0,
		indirect_referral_earnings NUMERIC NOT NULL DEFAULT 0,
		is_activated BOOLEAN NOT NULL DEFAULT FALSE,
		referral_code VARCHAR(5) UNIQUE,
		referred_by TEXT,
		mining_streak INTEGER NOT NULL DEFAULT 0,
		knowledge_streak INTEGER NOT NULL DEFAULT 0,
		last_mining TIMESTAMPTZ,
		last_quiz TIMESTAMPTZ,
		daily_ads_watched INTEGER NOT NULL DEFAULT 0,
		last_ad_reset TIMESTAMPTZ,
		activated_at TIMESTAMPTZ,
		total_referrals INTEGER NOT NULL DEFAULT 0,
		direct_referrals INTEGER NOT NULL DEFAULT 0,
		indirect_referrals INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT referrals_sum CHECK (total_referrals = direct_referrals + indirect_referrals)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_referred_by ON accounts(referred_by)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance DESC) WHERE is_activated`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_total_referrals ON accounts(total_referrals DESC) WHERE is_activated`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_mining_streak ON accounts(mining_streak DESC) WHERE is_activated`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		type VARCHAR(32) NOT NULL,
		amount NUMERIC NOT NULL,
		source_id TEXT,
		reference TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account_time ON ledger_entries(account_id, created_at DESC)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_ledger_reference ON ledger_entries(type, reference) WHERE reference IS NOT NULL`,
}

// Migrate applies the account and ledger schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	log.Info().Int("statements", len(migrations)).Msg("Database migrations completed")
	return nil
}
