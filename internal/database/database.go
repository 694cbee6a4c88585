// Package database centralises connection helpers for the gateway's two
// datastores: the MySQL control-plane database (via sqlx) and the optional
// Redis instance behind the shared site cache.
//
// Public entry points:
//
//	Open(ctx, dsn)                     – quick helper with conservative pool sizes.
//	OpenWithOptions(ctx, dsn, opts)    – fine-grained control, with retries.
//	OpenRedis(ctx, RedisOptions)       – parse URL, retry until PING succeeds.
//	Healthcheck / RedisHealthcheck     – checks for /healthz.
//
// Every helper pings before returning so callers can fail fast during
// bootstrap.  Callers should Close() what they open.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Options tunes a MySQL pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Retries         int           // extra ping attempts after the first
	RetryBackoff    time.Duration // sleep between attempts
}

// DefaultOptions returns the process-wide pool defaults: 15 max open, 5
// idle, a 30-minute connection lifetime, and two retries.
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    15,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		Retries:         2,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Open returns a *sqlx.DB with DefaultOptions.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions())
}

// OpenWithOptions opens a MySQL pool tuned by opts and pings it, retrying
// up to opts.Retries times.
func OpenWithOptions(ctx context.Context, dsn string, opts Options) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, errors.New("database: empty DSN")
	}
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := pingWithRetry(ctx, db.PingContext, opts.Retries, opts.RetryBackoff); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return db, nil
}

// BuildDSN fills the single %s verb in tmpl with password.  A template
// without a verb is returned unchanged.
func BuildDSN(tmpl, password string) string {
	if !strings.Contains(tmpl, "%s") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, password)
}

// Healthcheck returns a check that pings db.
func Healthcheck(db *sqlx.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql healthcheck: %w", err)
		}
		return nil
	}
}

func pingWithRetry(ctx context.Context, ping func(context.Context) error, retries int, backoff time.Duration) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}
	return err
}
