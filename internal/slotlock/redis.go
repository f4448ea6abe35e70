// Package slotlock serializes admission for a slot across service replicas.
package slotlock

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix     = "reservas:slot:"
	defaultOwnerPrefix   = "reservas:user:"
	defaultTTL           = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	releaseTimeout       = 2 * time.Second
)

// ErrLockNotHeld indicates the lock expired before release.
var ErrLockNotHeld = errors.New("slotlock.not_held")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// Option configures a RedisLocker.
type Option func(*RedisLocker)

// WithTTL bounds how long a crashed holder can block a key. Locks are never
// extended, so ttl must exceed the longest admission transaction; callers
// bound that with the request deadline and add a margin.
func WithTTL(ttl time.Duration) Option {
	return func(locker *RedisLocker) {
		if ttl > 0 {
			locker.ttl = ttl
		}
	}
}

func WithRetryInterval(interval time.Duration) Option {
	return func(locker *RedisLocker) {
		if interval > 0 {
			locker.retryInterval = interval
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(locker *RedisLocker) {
		if prefix != "" {
			locker.prefix = prefix
		}
	}
}

func WithOwnerKeyPrefix(prefix string) Option {
	return func(locker *RedisLocker) {
		if prefix != "" {
			locker.ownerPrefix = prefix
		}
	}
}

// OnReleaseError receives release failures with the lock key, since they
// cannot be returned to the caller of the unlock func.
func OnReleaseError(handler func(key string, err error)) Option {
	return func(locker *RedisLocker) {
		locker.onReleaseError = handler
	}
}

// RedisLocker implements reservas.SlotLocker and reservas.OwnerLocker with
// SET NX PX and a token-checked release.
type RedisLocker struct {
	client         lockClient
	prefix         string
	ownerPrefix    string
	ttl            time.Duration
	retryInterval  time.Duration
	onReleaseError func(key string, err error)
}

func NewRedisLocker(client *redis.Client, options ...Option) *RedisLocker {
	return newRedisLocker(client, options...)
}

func newRedisLocker(client lockClient, options ...Option) *RedisLocker {
	locker := &RedisLocker{
		client:        client,
		prefix:        defaultKeyPrefix,
		ownerPrefix:   defaultOwnerPrefix,
		ttl:           defaultTTL,
		retryInterval: defaultRetryInterval,
	}
	for _, option := range options {
		option(locker)
	}
	return locker
}

func (locker *RedisLocker) key(slot reservas.Slot) string {
	return locker.prefix + slot.Date() + "T" + slot.Time()
}

func (locker *RedisLocker) ownerKey(owner reservas.UserID) string {
	return locker.ownerPrefix + owner.String()
}

// Lock blocks until the slot is acquired or ctx ends.
func (locker *RedisLocker) Lock(ctx context.Context, slot reservas.Slot) (func(), error) {
	return locker.acquire(ctx, locker.key(slot))
}

// LockOwner blocks until no other booking of owner holds the lock or ctx ends.
func (locker *RedisLocker) LockOwner(ctx context.Context, owner reservas.UserID) (func(), error) {
	return locker.acquire(ctx, locker.ownerKey(owner))
}

func (locker *RedisLocker) acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for {
		acquired, err := locker.client.SetNX(ctx, key, token, locker.ttl).Result()
		if err != nil {
			return nil, err
		}
		if acquired {
			return func() { locker.release(key, token) }, nil
		}
		timer := time.NewTimer(locker.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (locker *RedisLocker) release(key string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	deleted, err := releaseScript.Run(ctx, locker.client, []string{key}, token).Int64()
	if err == nil && deleted == 0 {
		err = ErrLockNotHeld
	}
	if err != nil && locker.onReleaseError != nil {
		locker.onReleaseError(key, err)
	}
}
