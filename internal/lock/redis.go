// ABOUTME: Redis-backed Locker for deployments running several engine processes
// ABOUTME: Uses SET NX PX with a random token, a renewed lease, and a compare-and-delete release
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/harper/attune/internal/util"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker whose locks expire after TTL if the holder dies. A live
// holder keeps its lease by extending it every TTL/3.
type Redis struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	baseDelay time.Duration
}

// NewRedis connects to url and verifies the server with a PING
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{
		client:    client,
		prefix:    "attune:lock:",
		ttl:       ttl,
		baseDelay: 25 * time.Millisecond,
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	name := r.prefix + key
	token := uuid.NewString()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(util.CalculateBackoff(r.baseDelay, min(attempt, 6)))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			return r.hold(name, token), nil
		}
	}
}

// hold renews the lease until the returned unlock runs
func (r *Redis) hold(name, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.renew(name, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release must outlive a cancelled caller context
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{name}, token).Err()
		})
	}
}

func (r *Redis) renew(name, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(renewInterval(r.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.ttl/2)
		n, err := extendScript.Run(ctx, r.client, []string{name}, token, r.ttl.Milliseconds()).Int64()
		cancel()
		if err == nil && n == 0 {
			// lease lost to expiry; another holder may own the key now
			return
		}
	}
}

func renewInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d > 0 {
		return d
	}
	return time.Millisecond
}

// Close closes the redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
