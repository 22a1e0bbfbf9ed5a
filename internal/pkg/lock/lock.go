// Package lock serializes state-changing operations per account.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when an account lock is not acquired in time.
var ErrLockTimeout = errors.New("account is locked by another request")

// Locker runs fn while holding the lock for key. It returns ErrLockTimeout
// when the lock is still held after timeout.
type Locker interface {
	WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error
}

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// UserLock provides in-process per-account locking.
type UserLock struct {
	locks sync.Map // map[string]*keyMutex
	pool  sync.Pool
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{
		pool: sync.Pool{
			New: func() any {
				return &keyMutex{}
			},
		},
	}
}

func (ul *UserLock) getLock(key string) *keyMutex {
	if v, ok := ul.locks.Load(key); ok {
		return v.(*keyMutex)
	}

	newLock := ul.pool.Get().(*keyMutex)
	newLock.refCount = 0

	// Another goroutine may have stored one first.
	actual, loaded := ul.locks.LoadOrStore(key, newLock)
	if loaded {
		ul.pool.Put(newLock)
	}
	return actual.(*keyMutex)
}

// Lock acquires the lock for an account.
func (ul *UserLock) Lock(key string) {
	l := ul.getLock(key)
	l.mu.Lock()
	l.refCount++
}

// Unlock releases the lock for an account.
func (ul *UserLock) Unlock(key string) {
	if v, ok := ul.locks.Load(key); ok {
		l := v.(*keyMutex)
		l.refCount--
		l.mu.Unlock()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(key string) bool {
	l := ul.getLock(key)
	if l.mu.TryLock() {
		l.refCount++
		return true
	}
	return false
}

// LockWithTimeout waits up to timeout for the lock.
// Returns false if the timeout elapsed or ctx was cancelled first.
func (ul *UserLock) LockWithTimeout(ctx context.Context, key string, timeout time.Duration) bool {
	l := ul.getLock(key)

	done := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		l.refCount++
		return true
	case <-timeoutCtx.Done():
		// The waiter still owns a pending Lock; release it once it lands.
		go func() {
			<-done
			l.mu.Unlock()
		}()
		return false
	}
}

// WithLock executes fn while holding the account's lock.
func (ul *UserLock) WithLock(key string, fn func() error) error {
	ul.Lock(key)
	defer ul.Unlock(key)
	return fn()
}

// WithLockContext executes fn while holding the account's lock,
// giving up with ErrLockTimeout after timeout.
func (ul *UserLock) WithLockContext(ctx context.Context, key string, timeout time.Duration, fn func() error) error {
	if !ul.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer ul.Unlock(key)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// IsLocked is a point-in-time check and may change immediately after.
func (ul *UserLock) IsLocked(key string) bool {
	if v, ok := ul.locks.Load(key); ok {
		l := v.(*keyMutex)
		if l.mu.TryLock() {
			l.mu.Unlock()
			return false
		}
		return true
	}
	return false
}
