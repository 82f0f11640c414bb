// Package redislock implements ports.Locker on Redis so that several server
// instances serialize credit consumption for the same student.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ryoda0314/tutoring-app-sub000/ports"
)

// Defaults for Config.
const (
	DefaultTTL       = 10 * time.Second
	DefaultRetry     = 25 * time.Millisecond
	DefaultKeyPrefix = "tutorbill:lock:"
)

// unlockScript deletes the key only if this holder still owns it.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config configures the Redis locker.
type Config struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration // lock expiry if the holder dies (default: 10s)
	Retry     time.Duration // poll interval while waiting (default: 25ms)
	KeyPrefix string
}

// Locker is a SETNX-based ports.Locker.
type Locker struct {
	client    *redis.Client
	ttl       time.Duration
	retry     time.Duration
	keyPrefix string
	logger    zerolog.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Locker, error) {
	const op = "redislock.New"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config, logger zerolog.Logger) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &Locker{
		client:    client,
		ttl:       cfg.TTL,
		retry:     cfg.Retry,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger.With().Str("component", "redislock").Logger(),
	}
}

// Lock polls SETNX until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	const op = "redislock.Locker.Lock"

	lockKey := l.keyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %s: %w", op, key, ctx.Err())
		case <-ticker.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's ctx may already be cancelled; release must still run.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := unlockScript.Run(unlockCtx, l.client, []string{lockKey}, token).Int()
		if err != nil {
			l.logger.Error().Err(err).Str("key", key).Msg("release lock")
			return
		}
		if n == 0 {
			l.logger.Warn().Str("key", key).Dur("ttl", l.ttl).Msg("lock expired before release")
		}
	}, nil
}

// Close closes the Redis client.
func (l *Locker) Close() error {
	return l.client.Close()
}

// Ensure interface compliance.
var _ ports.Locker = (*Locker)(nil)
