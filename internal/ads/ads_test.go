package ads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProvider_GrantsByDefault(t *testing.T) {
	p := &MockProvider{Reward: 25}
	res, err := p.Show(context.Background(), "rewarded")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRewardGranted, res.Outcome)
	assert.Equal(t, int64(25), res.Reward)
}

func TestMockProvider_NonRewardOutcome(t *testing.T) {
	p := &MockProvider{Outcome: OutcomeFailedToLoad, Reward: 25}
	res, err := p.Show(context.Background(), "rewarded")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailedToLoad, res.Outcome)
	assert.Zero(t, res.Reward)
}

func TestMockProvider_Cancelled(t *testing.T) {
	p := &MockProvider{Delay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := p.Show(ctx, "rewarded")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, OutcomeClosed, res.Outcome)
}

func TestOutcomeValid(t *testing.T) {
	assert.True(t, OutcomeClosed.Valid())
	assert.False(t, Outcome("skipped").Valid())
}
