package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"smash-rewards/internal/model"
)

type ledgerStore interface {
	Record(ctx context.Context, entries ...model.LedgerEntry) error
	History(ctx context.Context, accountID string, limit int) ([]*model.LedgerEntry, error)
	HasReference(ctx context.Context, t model.EntryType, reference string) (bool, error)
}

var (
	_ ledgerStore = (*LedgerRepository)(nil)
	_ ledgerStore = (*MongoLedger)(nil)
	_ ledgerStore = (*MemoryLedger)(nil)
)

func TestMemoryLedger(t *testing.T) {
	runLedgerSuite(t, func(t *testing.T, _ ...string) ledgerStore { return NewMemoryLedger() })
}

func TestMemoryLedger_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger()
	ref := "0xabc"

	err := l.Record(ctx,
		entryAt("a", model.EntryMining, 150, testNow, &ref),
		entryAt("a", model.EntryMining, 150, testNow, &ref),
	)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	history, err := l.History(ctx, "a", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLedgerRepository_Postgres(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	accounts := NewAccountRepository(pool)
	runLedgerSuite(t, func(t *testing.T, ids ...string) ledgerStore {
		ctx := context.Background()
		_, err := pool.Exec(ctx, `TRUNCATE accounts CASCADE`)
		require.NoError(t, err)
		for _, id := range ids {
			_, err := accounts.Create(ctx, id, nil)
			require.NoError(t, err)
		}
		return NewLedgerRepository(pool)
	})
}

func TestMongoLedger(t *testing.T) {
	repo, cleanup := setupTestMongo(t)
	defer cleanup()

	ledger := NewMongoLedger(repo.accounts.Database())
	require.NoError(t, ledger.EnsureIndexes(context.Background()))

	runLedgerSuite(t, func(t *testing.T, _ ...string) ledgerStore {
		_, err := ledger.entries.DeleteMany(context.Background(), bson.M{})
		require.NoError(t, err)
		return ledger
	})
}

func entryAt(accountID string, typ model.EntryType, amount int64, at time.Time, ref *string) model.LedgerEntry {
	return model.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Type:      typ,
		Amount:    decimal.NewFromInt(amount),
		Reference: ref,
		CreatedAt: at,
	}
}

// runLedgerSuite exercises a ledger backend. newLedger resets it and makes
// sure the given account ids exist.
func runLedgerSuite(t *testing.T, newLedger func(t *testing.T, ids ...string) ledgerStore) {
	ctx := context.Background()

	t.Run("history newest first", func(t *testing.T) {
		l := newLedger(t, "alice", "bob")
		source := "bob"

		bonus := entryAt("alice", model.EntryActivationBonus, 200, testNow, nil)
		quiz := entryAt("alice", model.EntryQuiz, 100, testNow.Add(time.Hour), nil)
		commission := entryAt("alice", model.EntryCommissionDirect, 10, testNow.Add(2*time.Hour), nil)
		commission.SourceID = &source

		require.NoError(t, l.Record(ctx, bonus))
		require.NoError(t, l.Record(ctx, quiz, entryAt("bob", model.EntryAd, 25, testNow.Add(time.Hour), nil)))
		require.NoError(t, l.Record(ctx, commission))

		history, err := l.History(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, model.EntryCommissionDirect, history[0].Type)
		assert.Equal(t, "bob", *history[0].SourceID)
		assert.Equal(t, model.EntryQuiz, history[1].Type)
		assert.Equal(t, "200", history[2].Amount.String())
		assert.Nil(t, history[2].Reference)

		limited, err := l.History(ctx, "alice", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		none, err := l.History(ctx, "carol", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("references are unique per type", func(t *testing.T) {
		l := newLedger(t, "alice", "bob")
		ref := "0x1111111111111111111111111111111111111111111111111111111111111111"

		used, err := l.HasReference(ctx, model.EntryMining, ref)
		require.NoError(t, err)
		assert.False(t, used)

		require.NoError(t, l.Record(ctx, entryAt("alice", model.EntryMining, 150, testNow, &ref)))

		used, err = l.HasReference(ctx, model.EntryMining, ref)
		require.NoError(t, err)
		assert.True(t, used)

		err = l.Record(ctx, entryAt("bob", model.EntryMining, 150, testNow, &ref))
		assert.ErrorIs(t, err, ErrDuplicateReference)

		// Same reference under another type is a different claim.
		require.NoError(t, l.Record(ctx, entryAt("bob", model.EntryAd, 25, testNow, &ref)))
	})

	t.Run("empty batch", func(t *testing.T) {
		l := newLedger(t)
		assert.NoError(t, l.Record(ctx))
	})
}
