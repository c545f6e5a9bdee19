// Package locking provides advisory mutual exclusion over named resources,
// shared by every process that uses the same lock directory. The locks are
// cooperative: they only constrain callers that take them.
package locking

import (
	"context"
	"time"
)

// Options controls lock acquisition.
type Options struct {
	// IfAvailable makes WithLock return common.ErrLockNotAcquired
	// immediately when the lock is held elsewhere, instead of waiting.
	IfAvailable bool

	// Timeout bounds the wait for the lock. Zero means wait until the
	// context is done. Exceeding it yields common.ErrLockTimeout.
	Timeout time.Duration
}

// Manager acquires a named exclusive lock, runs fn while holding it, and
// releases on return. The timeout applies to acquisition only, never to fn.
type Manager interface {
	WithLock(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error
}

// NoopManager runs fn without any locking. It is the degraded mode for
// deployments with no shared lock directory; correctness then rests on the
// caller's own idempotency.
type NoopManager struct{}

func (NoopManager) WithLock(ctx context.Context, name string, opts Options, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
