package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/coachdesk/commission_engine/models"
)

// Locker serializes billing events for the same subscription and period so
// concurrent webhook retries cannot race each other past the idempotency
// check. Lock returns a release func on success.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

const (
	lockTTL       = 30 * time.Second
	lockRetryWait = 100 * time.Millisecond
	lockWaitMax   = 10 * time.Second
)

// RedisLocker takes distributed locks via SET NX with a TTL, so a crashed
// worker's lock expires instead of wedging the subscription forever.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(lockWaitMax)

	for {
		ok, err := l.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				// Only delete the lock if we still hold it
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if val, err := l.client.Get(rctx, key).Result(); err == nil && val == token {
					l.client.Del(rctx, key)
				}
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, models.ErrDistributionLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryWait):
		}
	}
}

// LocalLocker is the in-process fallback used when Redis is unavailable or in
// tests. Correct for a single instance only.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
