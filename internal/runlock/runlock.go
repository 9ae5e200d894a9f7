// Package runlock guards batch jobs against overlapping invocations.
// The daily and retry runs assume they never overlap; a redis SET NX
// lease enforces that across processes.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "runlock"

// ErrHeld is returned when another invocation holds the lock.
var ErrHeld = fmt.Errorf("runlock: job already running")

type Lock struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func New(client redis.Cmdable, ttl time.Duration) *Lock {
	return &Lock{redis: client, ttl: ttl}
}

// Acquire takes the lease for a job, scoped to a tag (normally the run
// date). The lease expires on its own if the holder dies.
func (l *Lock) Acquire(ctx context.Context, job, tag string) error {
	ok, err := l.redis.SetNX(ctx, key(job, tag), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return fmt.Errorf("runlock: acquire %s: %w", job, err)
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release drops the lease early.
func (l *Lock) Release(ctx context.Context, job, tag string) error {
	if err := l.redis.Del(ctx, key(job, tag)).Err(); err != nil {
		return fmt.Errorf("runlock: release %s: %w", job, err)
	}
	return nil
}

func key(job, tag string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, job, tag)
}
