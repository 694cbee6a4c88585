package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyRedisURL = errors.New("database: empty redis URL")
	ErrRedisNotReady = errors.New("database: redis did not become ready")
)

// RedisOptions configures OpenRedis.
type RedisOptions struct {
	URL            string // redis://:password@host:6379/0
	Retries        int
	RetryInterval  time.Duration
	ConnectTimeout time.Duration
}

// OpenRedis parses opts.URL and retries until PING succeeds or the attempts
// run out.  The whole attempt is bounded by ConnectTimeout when set.
func OpenRedis(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	if opts.URL == "" {
		return nil, ErrEmptyRedisURL
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = time.Second
	}
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	connOpt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("database: parse redis URL: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < opts.Retries; attempt++ {
		client := redis.NewClient(connOpt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == opts.Retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrRedisNotReady, lastErr, ctx.Err())
		case <-time.After(opts.RetryInterval):
		}
	}
	return nil, errors.Join(ErrRedisNotReady, lastErr)
}

// RedisHealthcheck returns a check that pings rdb.
func RedisHealthcheck(rdb redis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis healthcheck: %w", err)
		}
		return nil
	}
}
