package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	dlerrors "dsllink/internal/errors"
	"dsllink/internal/retry"
	"dsllink/util"
)

// DefaultRedisKey is the list that holds the board when no key is
// configured.
const DefaultRedisKey = "dsllink:board"

// RedisConfig configures a [Redis] board.
type RedisConfig struct {
	Addr    string
	DB      int
	Key     string        // default DefaultRedisKey
	Timeout time.Duration // dial/read/write timeout, default 3s

	// Backoff governs Connect.  Nil uses retry.StoreBackoff.
	Backoff *retry.Backoff
	// Breaker guards every board call.  Nil uses
	// retry.DefaultBreakerConfig.
	Breaker *retry.BreakerConfig
}

// Redis stores the board as a Redis list.  Posts are RPUSHed, so the
// list order is the order Redis accepted them in, across every server
// process sharing the key.
type Redis struct {
	client  *redis.Client
	key     string
	backoff *retry.Backoff
	breaker *retry.CircuitBreaker
	logger  *util.Logger
}

// NewRedis creates a Redis board.  It does not touch the network; call
// [Redis.Connect] before serving sessions.
func NewRedis(cfg RedisConfig, logger *util.Logger) *Redis {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.StoreBackoff()
	}
	if logger == nil {
		logger = util.NewLogger(0)
	}
	logger = logger.With("redis " + cfg.Addr)

	breakerCfg := retry.DefaultBreakerConfig()
	if cfg.Breaker != nil {
		c := *cfg.Breaker
		breakerCfg = &c
	}
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(from, to retry.State) {
			logger.Warn("circuit %s -> %s", from, to)
		}
	}

	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			DB:           cfg.DB,
			DialTimeout:  cfg.Timeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			MaxRetries:   1,
		}),
		key:     cfg.Key,
		backoff: cfg.Backoff,
		breaker: retry.NewCircuitBreaker(breakerCfg),
		logger:  logger,
	}
}

// Key returns the Redis list the board lives in.
func (r *Redis) Key() string { return r.key }

// Connect pings the server until it answers or the backoff gives up.
// A reply error (e.g. NOAUTH) is not retried.
func (r *Redis) Connect(ctx context.Context) error {
	err := r.backoff.Do(ctx, func(attempt int) error {
		err := r.client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		var replyErr redis.Error
		if errors.As(err, &replyErr) {
			return retry.Permanent(err)
		}
		r.logger.Verbose("ping attempt %d: %v", attempt, err)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", dlerrors.ErrBoardUnavailable, err)
	}
	r.logger.Debug("connected, key %s", r.key)
	return nil
}

// Append RPUSHes "{nickname}: {text}".
func (r *Redis) Append(ctx context.Context, nickname, text string) error {
	if err := validate(text); err != nil {
		return err
	}
	entry := Message{Nickname: nickname, Text: text}.String()
	return r.call(ctx, func() error {
		return r.client.RPush(ctx, r.key, entry).Err()
	})
}

// Snapshot reads the whole list with LRANGE 0 -1.
func (r *Redis) Snapshot(ctx context.Context) ([]string, error) {
	var out []string
	err := r.call(ctx, func() error {
		var err error
		out, err = r.client.LRange(ctx, r.key, 0, -1).Result()
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Len returns LLEN of the board key.
func (r *Redis) Len(ctx context.Context) (int, error) {
	var n int64
	err := r.call(ctx, func() error {
		var err error
		n, err = r.client.LLen(ctx, r.key).Result()
		return err
	})
	return int(n), err
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// call runs fn through the circuit breaker.  A cancelled context is
// returned as is and does not count against the store.
func (r *Redis) call(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.breaker.Execute(func() error {
		err := fn()
		if err != nil && ctx.Err() != nil {
			return nil
		}
		return err
	})
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return nil
	}
	return fmt.Errorf("%w: %w", dlerrors.ErrBoardUnavailable, err)
}
