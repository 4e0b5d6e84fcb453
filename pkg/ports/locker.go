package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired by Locker.
type UnlockFunc func(ctx context.Context) error

// Locker claims a robot identity across processes, so two clients never log in
// under the same name against one shared program store.
type Locker interface {
	// Lock blocks until the key is held or ctx is done.
	// A zero ttl holds the lock until it is released.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
