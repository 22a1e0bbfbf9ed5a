package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestConcurrentCreditSafetyProperty checks that credits applied concurrently
// under the lock equal their sequential sum.
func TestConcurrentCreditSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(1, 500).Draw(t, "amount")
			expected += amounts[i]
		}

		key := rapid.StringMatching(`[a-z0-9]{8}`).Draw(t, "accountID")
		ul := NewUserLock()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				ul.Lock(key)
				defer ul.Unlock(key)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
	})
}

// TestWithLockContextProperty checks that WithLockContext serializes callers.
func TestWithLockContextProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numOps := rapid.IntRange(5, 30).Draw(t, "numOps")
		amount := rapid.Int64Range(1, 100).Draw(t, "amount")

		ul := NewUserLock()
		var balance int64

		var wg sync.WaitGroup
		wg.Add(numOps)
		for i := 0; i < numOps; i++ {
			go func() {
				defer wg.Done()
				_ = ul.WithLockContext(context.Background(), "acc", time.Minute, func() error {
					balance += amount
					return nil
				})
			}()
		}
		wg.Wait()

		if balance != int64(numOps)*amount {
			t.Fatalf("balance mismatch: expected %d, got %d", int64(numOps)*amount, balance)
		}
	})
}

// TestIndependentAccountsProperty checks that locks for different accounts
// do not interfere.
func TestIndependentAccountsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numAccounts := rapid.IntRange(2, 10).Draw(t, "numAccounts")
		opsPer := rapid.IntRange(5, 20).Draw(t, "opsPer")

		ul := NewUserLock()
		balances := make(map[string]*int64, numAccounts)
		for i := 0; i < numAccounts; i++ {
			var b int64
			balances[fmt.Sprintf("acc-%d", i)] = &b
		}

		var wg sync.WaitGroup
		wg.Add(numAccounts * opsPer)
		for key := range balances {
			for j := 0; j < opsPer; j++ {
				go func(key string) {
					defer wg.Done()
					ul.Lock(key)
					defer ul.Unlock(key)
					*balances[key] += 10
				}(key)
			}
		}
		wg.Wait()

		for key, b := range balances {
			if *b != int64(opsPer)*10 {
				t.Fatalf("%s: expected %d, got %d", key, opsPer*10, *b)
			}
		}
	})
}

// TestTryLockProperty checks that at least one concurrent TryLock wins and the
// lock is free afterwards.
func TestTryLockProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempts := rapid.IntRange(5, 20).Draw(t, "attempts")
		ul := NewUserLock()

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(attempts)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				<-start
				if ul.TryLock("acc") {
					wins.Add(1)
					ul.Unlock("acc")
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins.Load() < 1 {
			t.Fatalf("no TryLock succeeded")
		}
		if !ul.TryLock("acc") {
			t.Fatal("lock should be free after all holders released")
		}
		ul.Unlock("acc")
	})
}

func TestWithLockContext_Timeout(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("acc")
	assert.True(t, ul.IsLocked("acc"))

	called := false
	err := ul.WithLockContext(context.Background(), "acc", 20*time.Millisecond, func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.False(t, called)

	ul.Unlock("acc")
	// The abandoned waiter acquires and releases in the background.
	assert.Eventually(t, func() bool { return !ul.IsLocked("acc") }, time.Second, 5*time.Millisecond)
}

func TestWithLockContext_Cancelled(t *testing.T) {
	ul := NewUserLock()
	ul.Lock("acc")
	defer ul.Unlock("acc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ul.WithLockContext(ctx, "acc", time.Second, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
