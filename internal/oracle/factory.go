package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atharvakonge/tradeshift/internal/config"
	"github.com/go-redis/redis/v8"
)

// New builds the oracle chain described by cfg: the provider, then the
// quote cache when rdb is non-nil, then the timeout.
func New(cfg config.Oracle, rdb *redis.Client, redisCfg config.Redis, log *slog.Logger) (Oracle, error) {
	var base Oracle
	switch strings.ToLower(cfg.Provider) {
	case "", "mock":
		base = NewMock(cfg.MockNoise)
	case "alphavantage":
		if cfg.AlphaVantageKey == "" {
			return nil, fmt.Errorf("oracle alphavantage: ALPHAVANTAGE_API_KEY is not set")
		}
		base = NewAlphaVantage(cfg.AlphaVantageKey)
	case "alpaca":
		if cfg.AlpacaKey == "" || cfg.AlpacaSecret == "" {
			return nil, fmt.Errorf("oracle alpaca: APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
		}
		base = NewAlpaca(cfg.AlpacaKey, cfg.AlpacaSecret, cfg.AlpacaDataURL)
	default:
		return nil, fmt.Errorf("unknown price provider %q", cfg.Provider)
	}

	o := base
	if rdb != nil && redisCfg.QuoteTTL > 0 {
		o = Cached(o, &RedisCache{Client: rdb, Prefix: "tradeshift:"}, redisCfg.QuoteTTL, log)
	}
	return WithTimeout(o, cfg.Timeout), nil
}

// NewRedisClient connects to the quote cache. It returns nil when no address
// is configured.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
