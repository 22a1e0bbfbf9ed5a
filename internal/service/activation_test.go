package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"smash-rewards/internal/model"
	"smash-rewards/internal/referral"
)

func TestActivate_MasterCode(t *testing.T) {
	env := newTestEnv(t)
	acc := env.activate(t, "alice", testMaster)

	assert.True(t, acc.IsActivated)
	assert.Equal(t, int64(200), acc.Balance)
	assert.Equal(t, "200", acc.TotalEarned.String())
	assert.Equal(t, model.MasterSponsor, acc.Sponsor())
	require.NotNil(t, acc.ReferralCode)
	assert.True(t, referral.IsWellFormed(*acc.ReferralCode))
	require.NotNil(t, acc.Username)
	assert.Equal(t, "alice_user", *acc.Username)
}

func TestActivate_MasterCodeIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.newAccount(t, "alice")

	acc, err := env.activation.Activate(context.Background(), "alice", " hirys ", "alice_user")
	require.NoError(t, err)
	assert.Equal(t, model.MasterSponsor, acc.Sponsor())
}

func TestActivate_Referred(t *testing.T) {
	env := newTestEnv(t)
	sponsor := env.activate(t, "rob", testMaster)

	acc := env.activate(t, "alice", codeOf(sponsor))
	assert.Equal(t, "rob", acc.Sponsor())
	assert.NotEqual(t, codeOf(sponsor), codeOf(acc))
	assert.Equal(t, int64(200), acc.Balance)

	rob := env.get(t, "rob")
	assert.Equal(t, 1, rob.TotalReferrals)
	assert.Equal(t, 1, rob.DirectReferrals)
	assert.Zero(t, rob.IndirectReferrals)
	assert.Equal(t, int64(200), rob.Balance)
}

func TestActivate_Twice(t *testing.T) {
	env := newTestEnv(t)
	first := env.activate(t, "alice", testMaster)

	_, err := env.activation.Activate(context.Background(), "alice", testMaster, "alice_user")
	assert.ErrorIs(t, err, ErrAlreadyActivated)
	assert.ErrorIs(t, err, ErrNotEligible)

	after := env.get(t, "alice")
	assert.Equal(t, first.Balance, after.Balance)
	assert.Equal(t, codeOf(first), codeOf(after))
}

func TestActivate_UnknownCode(t *testing.T) {
	env := newTestEnv(t)
	env.newAccount(t, "alice")

	_, err := env.activation.Activate(context.Background(), "alice", "ZZZZZ", "alice_user")
	assert.ErrorIs(t, err, ErrReferralNotFound)

	acc := env.get(t, "alice")
	assert.False(t, acc.IsActivated)
	assert.Zero(t, acc.Balance)
	assert.Nil(t, acc.ReferralCode)
}

func TestActivate_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.newAccount(t, "alice")
	ctx := context.Background()

	tests := []struct {
		name     string
		code     string
		username string
		want     error
	}{
		{"short code", "ABC", "alice_user", ErrInvalidCode},
		{"symbol in code", "AB-CD", "alice_user", ErrInvalidCode},
		{"short username", testMaster, "al", ErrInvalidUsername},
		{"space in username", testMaster, "alice user", ErrInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.activation.Activate(ctx, "alice", tt.code, tt.username)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.False(t, env.get(t, "alice").IsActivated)
}

func TestActivate_RequiresWallet(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.accounts.EnsureAccount(context.Background(), "alice", nil)
	require.NoError(t, err)

	_, err = env.activation.Activate(context.Background(), "alice", testMaster, "alice_user")
	assert.ErrorIs(t, err, ErrWalletRequired)
}

func TestActivate_UnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.activation.Activate(context.Background(), "ghost", testMaster, "ghost_user")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestActivate_RegeneratesTakenCode(t *testing.T) {
	env := newTestEnv(t)
	env.activation.generate = sequence("TAKEN")
	env.activate(t, "rob", testMaster)

	env.activation.generate = sequence(testMaster, "TAKEN", "FRESH")
	acc := env.activate(t, "alice", testMaster)
	assert.Equal(t, "FRESH", codeOf(acc))
}

func TestActivate_GivesUpAfterAttempts(t *testing.T) {
	env := newTestEnv(t)
	env.activation.generate = sequence("TAKEN")
	env.activate(t, "rob", testMaster)

	env.activation.generate = func() (string, error) { return "TAKEN", nil }
	env.newAccount(t, "alice")
	_, err := env.activation.Activate(context.Background(), "alice", testMaster, "alice_user")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.False(t, env.get(t, "alice").IsActivated)
}

// sequence returns a generator yielding codes in order, then repeating the last.
func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[min(i, len(codes)-1)]
		i++
		return c, nil
	}
}

func TestActivationKeepsReferralTotalsProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		env := newTestEnv(t)
		n := rapid.IntRange(1, 15).Draw(rt, "accounts")

		var codes []string
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("user%d", i)
			code := testMaster
			if len(codes) > 0 && rapid.Bool().Draw(rt, "referred") {
				code = codes[rapid.IntRange(0, len(codes)-1).Draw(rt, "sponsor")]
			}
			acc := env.activate(t, id, code)
			codes = append(codes, codeOf(acc))
		}

		seen := map[string]bool{}
		for i := 0; i < n; i++ {
			acc := env.get(t, fmt.Sprintf("user%d", i))
			if acc.TotalReferrals != acc.DirectReferrals+acc.IndirectReferrals {
				rt.Fatalf("%s: total %d != direct %d + indirect %d",
					acc.ID, acc.TotalReferrals, acc.DirectReferrals, acc.IndirectReferrals)
			}
			if seen[codeOf(acc)] {
				rt.Fatalf("duplicate referral code %s", codeOf(acc))
			}
			seen[codeOf(acc)] = true
		}
	})
}
