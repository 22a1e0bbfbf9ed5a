package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"smash-rewards/internal/model"
)

// chainOf activates r0 <- r1 <- r2 <- a under the master code.
func chainOf(t *testing.T, env *testEnv) {
	t.Helper()
	r0 := env.activate(t, "r0", testMaster)
	r1 := env.activate(t, "r1", codeOf(r0))
	r2 := env.activate(t, "r2", codeOf(r1))
	env.activate(t, "a", codeOf(r2))
}

func event(id string, reward int64, env *testEnv) model.EarningEvent {
	return model.EarningEvent{AccountID: id, Kind: model.ActionAd, Reward: reward, At: env.clock}
}

// assertCommissions compares paid commissions as "sponsor:amount", in order.
func assertCommissions(t *testing.T, got []Commission, want ...string) {
	t.Helper()
	paid := make([]string, 0, len(got))
	for _, c := range got {
		paid = append(paid, c.SponsorID+":"+c.Amount.String())
	}
	assert.Equal(t, want, paid)
}

func TestProcess_TwoHopCommission(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)

	res, err := env.processor.Process(context.Background(), event("a", 100, env))
	require.NoError(t, err)
	assert.False(t, res.PartialCommission)
	assert.Equal(t, int64(100), res.Credited)
	assertCommissions(t, res.Commissions, "r2:10", "r1:5")

	a := env.get(t, "a")
	assert.Equal(t, int64(300), a.Balance)
	assert.Equal(t, "300", a.TotalEarned.String())
	assert.Equal(t, 1, a.DailyAdsWatched)

	r2 := env.get(t, "r2")
	assert.Equal(t, "10", r2.DirectReferralEarnings.String())
	assert.Equal(t, "210", r2.TotalEarned.String())
	assert.Equal(t, int64(200), r2.Balance, "commission does not touch balance")

	r1 := env.get(t, "r1")
	assert.Equal(t, "5", r1.IndirectReferralEarnings.String())
	assert.True(t, r1.DirectReferralEarnings.IsZero())
	assert.Equal(t, "205", r1.TotalEarned.String())

	r0 := env.get(t, "r0")
	assert.Equal(t, "200", r0.TotalEarned.String(), "no third hop")
}

func TestProcess_MasterSponsorPaysNothing(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t, "a", testMaster)

	res, err := env.processor.Process(context.Background(), event("a", 100, env))
	require.NoError(t, err)
	assert.Empty(t, res.Commissions)
	assert.False(t, res.PartialCommission)
}

func TestProcess_CommissionKeepsFractions(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)

	res, err := env.processor.Process(context.Background(), event("a", 37, env))
	require.NoError(t, err)
	assertCommissions(t, res.Commissions, "r2:3.7", "r1:1.85")

	res, err = env.processor.Process(context.Background(), event("a", 9, env))
	require.NoError(t, err)
	assertCommissions(t, res.Commissions, "r2:0.9", "r1:0.45")
	assert.False(t, res.PartialCommission)

	assert.Equal(t, "4.6", env.get(t, "r2").DirectReferralEarnings.String())
	assert.Equal(t, "2.3", env.get(t, "r1").IndirectReferralEarnings.String())
	assert.Equal(t, "202.3", env.get(t, "r1").TotalEarned.String())
}

func TestProcess_MiningAndAdCommissions(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)
	ctx := context.Background()

	res, err := env.processor.Process(ctx, model.EarningEvent{AccountID: "a", Kind: model.ActionMining, Reward: 150, At: env.clock})
	require.NoError(t, err)
	assertCommissions(t, res.Commissions, "r2:15", "r1:7.5")

	res, err = env.processor.Process(ctx, event("a", 25, env))
	require.NoError(t, err)
	assertCommissions(t, res.Commissions, "r2:2.5", "r1:1.25")

	r1 := env.get(t, "r1")
	assert.Equal(t, "8.75", r1.IndirectReferralEarnings.String())
	assert.Equal(t, "208.75", r1.TotalEarned.String())
	assert.Equal(t, int64(200), r1.Balance)
}

func TestProcess_ZeroRewardStillRecordsAction(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)

	res, err := env.processor.Process(context.Background(), model.EarningEvent{
		AccountID: "a", Kind: model.ActionQuiz, Reward: 0, At: env.clock, QuizStreak: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Commissions)
	assert.Equal(t, 1, res.Account.KnowledgeStreak)
	assert.NotNil(t, res.Account.LastQuiz)
}

func TestProcess_DirectCommissionFailure(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)
	env.store.failCommissionTo["r2"] = true

	res, err := env.processor.Process(context.Background(), event("a", 100, env))
	require.NoError(t, err, "commission failures are not returned")
	assert.True(t, res.PartialCommission)
	assert.Empty(t, res.Commissions)

	assert.Equal(t, int64(300), env.get(t, "a").Balance)
	assert.Equal(t, "200", env.get(t, "r2").TotalEarned.String())
	assert.Equal(t, "200", env.get(t, "r1").TotalEarned.String(), "chain stops at the failed hop")
}

func TestProcess_IndirectCommissionFailure(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)
	env.store.failCommissionTo["r1"] = true

	res, err := env.processor.Process(context.Background(), event("a", 100, env))
	require.NoError(t, err)
	assert.True(t, res.PartialCommission)
	require.Len(t, res.Commissions, 1)
	assert.Equal(t, "r2", res.Commissions[0].SponsorID)
	assert.Equal(t, "10", env.get(t, "r2").DirectReferralEarnings.String())
}

func TestProcess_CreditFailureChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	chainOf(t, env)
	env.store.failCredit = true

	_, err := env.processor.Process(context.Background(), event("a", 100, env))
	assert.ErrorIs(t, err, ErrUpstream)

	assert.Equal(t, int64(200), env.get(t, "a").Balance)
	assert.True(t, env.get(t, "r2").DirectReferralEarnings.IsZero())
	assert.True(t, env.get(t, "r1").IndirectReferralEarnings.IsZero())
}

func TestProcess_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.newAccount(t, "idle")
	ctx := context.Background()

	_, err := env.processor.Process(ctx, event("idle", 10, env))
	assert.ErrorIs(t, err, ErrNotActivated)

	_, err = env.processor.Process(ctx, event("ghost", 10, env))
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = env.processor.Process(ctx, model.EarningEvent{AccountID: "idle", Kind: "staking", Reward: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.processor.Process(ctx, event("idle", -1, env))
	assert.ErrorIs(t, err, ErrInvalidReward)
}

func TestCommissionProperty(t *testing.T) {
	env := newTestEnv(t)
	rapid.Check(t, func(t *rapid.T) {
		reward := rapid.Int64Range(0, 1_000_000).Draw(t, "reward")
		direct := env.processor.Commission(reward, model.CommissionDirect)
		indirect := env.processor.Commission(reward, model.CommissionIndirect)

		want := decimal.NewFromInt(reward)
		if !direct.Mul(decimal.NewFromInt(10)).Equal(want) {
			t.Fatalf("direct commission of %d = %s, want a tenth", reward, direct)
		}
		if !indirect.Mul(decimal.NewFromInt(20)).Equal(want) {
			t.Fatalf("indirect commission of %d = %s, want a twentieth", reward, indirect)
		}
	})
}
