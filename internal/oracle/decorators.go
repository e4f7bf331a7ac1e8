package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds every quote of next. A quote that does not return in
// time fails with models.ErrPriceUnavailable.
func WithTimeout(next Oracle, timeout time.Duration) Oracle {
	if timeout <= 0 {
		return next
	}
	return &timeoutOracle{next: next, timeout: timeout}
}

type quoteResult struct {
	price decimal.Decimal
	err   error
}

func (t *timeoutOracle) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// buffered so a late answer never blocks the goroutine
	done := make(chan quoteResult, 1)
	go func() {
		p, err := t.next.Quote(ctx, symbol)
		done <- quoteResult{p, err}
	}()

	select {
	case r := <-done:
		return r.price, r.err
	case <-ctx.Done():
		return decimal.Zero, unavailable(symbol, "quote timed out after %s", t.timeout)
	}
}

// Cache stores quotes as strings for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache is a Cache backed by a Redis client.
type RedisCache struct {
	Client *redis.Client
	Prefix string
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.Client.Get(ctx, r.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, r.Prefix+key, value, ttl).Err()
}

type cachedOracle struct {
	next  Oracle
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// Cached serves recent quotes from cache and falls through to next on a
// miss. Cache failures are logged and never fail a quote.
func Cached(next Oracle, cache Cache, ttl time.Duration, log *slog.Logger) Oracle {
	if log == nil {
		log = slog.Default()
	}
	return &cachedOracle{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *cachedOracle) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = models.NormalizeSymbol(symbol)
	key := "quote:" + symbol

	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		c.log.Warn("quote cache read failed", "symbol", symbol, "error", err)
	} else if ok {
		if p, err := decimal.NewFromString(v); err == nil && p.IsPositive() {
			return p, nil
		}
		c.log.Warn("discarding bad cached quote", "symbol", symbol, "value", v)
	}

	p, err := c.next.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.cache.Set(ctx, key, p.String(), c.ttl); err != nil {
		c.log.Warn("quote cache write failed", "symbol", symbol, "error", err)
	}
	return p, nil
}
