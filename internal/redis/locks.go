package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived advisory locks. The orchestrator takes one
// per (user, plan) before a pass so two concurrent invocations for the
// same scope skip instead of racing each other to the proposal insert.
type Locker interface {
	// TryAcquire takes the lock if free. Returns a release func and true,
	// or nil and false when someone else holds it.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

type redisLocker struct {
	client *redis.Client
}

// NewLocker returns a Redis-backed Locker.
func NewLocker(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{"lock:" + key}, token).Err()
	}
	return release, true, nil
}

// LeaderElector keeps at most one sweeper instance active across replicas.
type LeaderElector struct {
	client     *redis.Client
	key        string
	instanceID string
	ttl        time.Duration
}

// NewLeaderElector returns a SETNX-based elector for the given key.
func NewLeaderElector(client *redis.Client, key, instanceID string, ttl time.Duration) *LeaderElector {
	return &LeaderElector{client: client, key: key, instanceID: instanceID, ttl: ttl}
}

// renewScript extends the lease only if we still own it.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// AcquireOrRenew attempts to become (or remain) the leader.
func (e *LeaderElector) AcquireOrRenew(ctx context.Context) (bool, error) {
	ok, err := e.client.SetNX(ctx, e.key, e.instanceID, e.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("leader election SetNX: %w", err)
	}
	if ok {
		return true, nil
	}

	result, err := renewScript.Run(ctx, e.client, []string{e.key}, e.instanceID, e.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("leader renewal: %w", err)
	}
	return result == 1, nil
}
