package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrHeld is returned when a key stays locked by another holder for longer than the wait limit.
var ErrHeld = errors.New("identity lock is held")

const keyPrefix = "identity:lock:"

// unlock deletes a key only if it still carries the holder's token.
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extend renews a key's expiry only if it still carries the holder's token.
var extend = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a keyed mutex shared by all service instances that use the same Redis server. Every
// key expires after the TTL so that a crashed holder cannot block an identity forever. While a
// holder is alive its keys are renewed every third of the TTL, so a slow transaction keeps its
// lock until it releases it.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// RedisOption configures a Redis lock.
type RedisOption func(*Redis)

// WithTTL sets how long a key stays locked after its holder stopped renewing it, for example
// because the process died.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithWait sets how long Acquire waits for a key held by someone else.
func WithWait(wait time.Duration) RedisOption {
	return func(r *Redis) {
		if wait > 0 {
			r.wait = wait
		}
	}
}

// WithLogger sets the logger for failed releases.
func WithLogger(logger zerolog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

// NewRedis creates a Redis lock. By default keys expire after ten seconds and Acquire waits as
// long as one TTL.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    10 * time.Second,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.wait == 0 {
		r.wait = r.ttl
	}
	return r
}

// Acquire takes all keys with one token, polling with exponential backoff while a key is held.
func (r *Redis) Acquire(ctx context.Context, keys []string) (func(), error) {
	keys = sortedKeys(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := r.lock(ctx, keyPrefix+key, token); err != nil {
			r.release(ctx, held, token)
			return nil, err
		}
		held = append(held, keyPrefix+key)
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go r.keepAlive(ctx, held, token, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped
			r.release(ctx, held, token)
		})
	}, nil
}

// keepAlive renews the keys until stop is closed. It outlives ctx because the holder may still
// be committing when its request is cancelled.
func (r *Redis) keepAlive(ctx context.Context, keys []string, token string, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ctx = context.WithoutCancel(ctx)
	ticker := time.NewTicker(max(r.ttl/3, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, key := range keys {
				if err := extend.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Err(); err != nil {
					r.logger.Warn().Err(err).Str("key", key).Msg("failed to renew identity lock")
				}
			}
		}
	}
}

func (r *Redis) lock(ctx context.Context, key, token string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = r.wait

	err := backoff.Retry(func() error {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("lock %s: %w", key, err))
		}
		if !ok {
			return ErrHeld
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, ErrHeld) {
		return fmt.Errorf("%w: %s", ErrHeld, key)
	}
	return err
}

// release deletes the keys even if ctx is already done.
func (r *Redis) release(ctx context.Context, keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := unlock.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("failed to release identity lock")
		}
	}
}
