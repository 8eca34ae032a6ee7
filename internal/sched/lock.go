// Package sched schedules recurring pipeline runs and guards them with a
// best-effort distributed lock so concurrent deployments never execute
// overlapping passes.
package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a Redis-backed mutex with a TTL fallback: a crashed holder's lock
// expires on its own.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLock parses the Redis URL and verifies connectivity.
func NewLock(ctx context.Context, redisURL, key string, ttl time.Duration) (*Lock, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Lock{client: client, key: key, ttl: ttl}, nil
}

// TryAcquire takes the lock if it is free. On success the returned release
// function gives the lock back, but only while this holder still owns it.
func (l *Lock) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Err()
	}, true, nil
}

// Close releases the Redis connection.
func (l *Lock) Close() error {
	return l.client.Close()
}
