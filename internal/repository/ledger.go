package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smash-rewards/internal/model"
)

// LedgerRepository persists earnings history in PostgreSQL.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Record inserts entries in one batch. A reference already recorded for the
// same entry type fails the whole batch with ErrDuplicateReference.
func (r *LedgerRepository) Record(ctx context.Context, entries ...model.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const query = `
		INSERT INTO ledger_entries (id, account_id, type, amount, source_id, reference, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
	`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ledger transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ID, e.AccountID, e.Type, e.Amount.String(), e.SourceID, e.Reference, e.CreatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to record ledger entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger entries: %w", err)
	}
	return nil
}

// History retrieves an account's entries, newest first.
func (r *LedgerRepository) History(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, account_id, type, amount, source_id, reference, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.LedgerEntry, 0, limit)
	for rows.Next() {
		var e model.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.AccountID,
			&e.Type,
			&e.Amount,
			&e.SourceID,
			&e.Reference,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// HasReference reports whether an entry of type t already carries reference.
func (r *LedgerRepository) HasReference(ctx context.Context, t model.EntryType, reference string) (bool, error) {
	const query = `SELECT 1 FROM ledger_entries WHERE type = $1 AND reference = $2`

	var one int
	err := r.pool.QueryRow(ctx, query, t, reference).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up ledger reference: %w", err)
	}
	return true, nil
}
