package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"smash-rewards/internal/ads"
	"smash-rewards/internal/chain"
	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
	"smash-rewards/internal/repository"
)

const (
	testMaster   = "HIRYS"
	testTreasury = "0xA13351981c18D8A459f8CDCcC9Fd34966f5FF215"
	testChainID  = 1270
)

var errStoreDown = errors.New("store unavailable")

// flakyStore fails selected writes of an otherwise working store.
type flakyStore struct {
	AccountStore

	mu               sync.Mutex
	failCredit       bool
	failCommissionTo map[string]bool
}

func (f *flakyStore) Credit(ctx context.Context, c model.Credit) (*model.Account, error) {
	f.mu.Lock()
	fail := f.failCredit
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.AccountStore.Credit(ctx, c)
}

func (f *flakyStore) CreditCommission(ctx context.Context, sponsorID string, level model.CommissionLevel, amount decimal.Decimal) (*model.Account, error) {
	f.mu.Lock()
	fail := f.failCommissionTo[sponsorID]
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.AccountStore.CreditCommission(ctx, sponsorID, level, amount)
}

// fakeVerifier records payments and answers with err.
type fakeVerifier struct {
	mu    sync.Mutex
	err   error
	calls []chain.Payment
}

func (v *fakeVerifier) VerifyPayment(_ context.Context, p chain.Payment) (*chain.Receipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, p)
	if v.err != nil {
		return nil, v.err
	}
	return &chain.Receipt{TxHash: p.TxHash, From: p.From, To: p.To, Value: p.MinValue, BlockNumber: 1}, nil
}

type fakeBalances struct {
	wei *big.Int
	err error
}

func (b fakeBalances) Balance(context.Context, string) (*big.Int, error) {
	return b.wei, b.err
}

type testEnv struct {
	store      *flakyStore
	mem        *repository.MemoryRepository
	ledger     *repository.MemoryLedger
	clock      time.Time
	verifier   *fakeVerifier
	processor  *EarningProcessor
	activation *ActivationService
	mining     *MiningService
	ads        *AdsService
	quiz       *QuizService
	accounts   *AccountService
	rankings   *RankingService
	walletSeq  int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := repository.NewMemoryRepository()
	store := &flakyStore{AccountStore: mem, failCommissionTo: map[string]bool{}}
	locker := lock.NewUserLock()
	policy := eligibility.DefaultPolicy()

	resolver, err := NewReferralResolver(store, 64)
	require.NoError(t, err)

	env := &testEnv{
		store:    store,
		mem:      mem,
		ledger:   repository.NewMemoryLedger(),
		clock:    time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		verifier: &fakeVerifier{},
	}
	now := func() time.Time { return env.clock }

	fee, err := chain.ToWei("0.001")
	require.NoError(t, err)

	env.processor = NewEarningProcessor(store, decimal.RequireFromString("0.10"), decimal.RequireFromString("0.05"))
	env.processor.SetLedger(env.ledger)
	env.activation = NewActivationService(store, resolver, locker, ActivationConfig{MasterCode: testMaster, Bonus: 200})
	env.activation.SetLedger(env.ledger)
	env.activation.now = now
	env.mining = NewMiningService(store, env.processor, env.verifier, locker, policy,
		MiningConfig{Reward: 150, Treasury: testTreasury, Fee: fee})
	env.mining.now = now
	env.ads = NewAdsService(store, env.processor, &ads.MockProvider{}, locker, policy, 25)
	env.ads.now = now
	env.quiz = NewQuizService(store, env.processor, locker, policy,
		QuizConfig{RewardPerAnswer: 50, QuestionCount: 8, StreakBonus: 25, StreakBonusDays: 7})
	env.quiz.now = now
	env.accounts = NewAccountService(store, fakeBalances{wei: fee}, locker, policy)
	env.accounts.SetLedger(env.ledger)
	env.accounts.now = now
	env.rankings = NewRankingService(store)
	return env
}

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

// newAccount creates an unactivated account with a bound wallet.
func (e *testEnv) newAccount(t *testing.T, id string) string {
	t.Helper()
	ctx := context.Background()
	_, _, err := e.accounts.EnsureAccount(ctx, id, nil)
	require.NoError(t, err)

	e.walletSeq++
	_, err = e.accounts.BindWallet(ctx, id, fmt.Sprintf("0x%040x", e.walletSeq))
	require.NoError(t, err)
	return id
}

// activate creates and activates id under code, returning the account.
func (e *testEnv) activate(t *testing.T, id, code string) *model.Account {
	t.Helper()
	e.newAccount(t, id)
	acc, err := e.activation.Activate(context.Background(), id, code, id+"_user")
	require.NoError(t, err)
	return acc
}

func (e *testEnv) get(t *testing.T, id string) *model.Account {
	t.Helper()
	acc, err := e.mem.Get(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func codeOf(acc *model.Account) string {
	return *acc.ReferralCode
}
