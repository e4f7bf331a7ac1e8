// Package config loads service configuration from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Oracle   Oracle   `yaml:"oracle"`
	Auth     Auth     `yaml:"auth"`
	Logging  Logging  `yaml:"logging"`
	Stream   Stream   `yaml:"stream"`
}

// Server holds HTTP listener settings.
type Server struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

// Database selects the store. Driver is "postgres" or "sqlite".
type Database struct {
	Driver          string        `yaml:"driver"`
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Redis configures the quote cache. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// Oracle selects and tunes the price source. Provider is "mock",
// "alphavantage" or "alpaca".
type Oracle struct {
	Provider        string        `yaml:"provider"`
	Timeout         time.Duration `yaml:"timeout"`
	MockNoise       bool          `yaml:"mock_noise"`
	AlphaVantageKey string        `yaml:"alphavantage_key"`
	AlpacaKey       string        `yaml:"alpaca_key"`
	AlpacaSecret    string        `yaml:"alpaca_secret"`
	AlpacaDataURL   string        `yaml:"alpaca_data_url"`
}

// Auth configures bearer tokens.
type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Stream configures the websocket price feed.
type Stream struct {
	Symbols  []string      `yaml:"symbols"`
	Interval time.Duration `yaml:"interval"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Server: Server{Port: "8080", GinMode: "debug"},
		Database: Database{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            "5433",
			User:            "trader",
			Password:        "trading123",
			Name:            "trading_db",
			SSLMode:         "disable",
			SQLitePath:      "tradeshift.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis:   Redis{QuoteTTL: 5 * time.Second},
		Oracle:  Oracle{Provider: "mock", Timeout: 3 * time.Second, MockNoise: true},
		Auth:    Auth{TokenTTL: 24 * time.Hour},
		Logging: Logging{Level: "info", Format: "json"},
		Stream: Stream{
			Symbols:  []string{"AAPL", "GOOGL", "MSFT", "TSLA", "AMZN"},
			Interval: time.Second,
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"PORT":                 &cfg.Server.Port,
		"GIN_MODE":             &cfg.Server.GinMode,
		"DB_DRIVER":            &cfg.Database.Driver,
		"DB_HOST":              &cfg.Database.Host,
		"DB_PORT":              &cfg.Database.Port,
		"DB_USER":              &cfg.Database.User,
		"DB_PASSWORD":          &cfg.Database.Password,
		"DB_NAME":              &cfg.Database.Name,
		"DB_SSLMODE":           &cfg.Database.SSLMode,
		"SQLITE_PATH":          &cfg.Database.SQLitePath,
		"REDIS_ADDR":           &cfg.Redis.Addr,
		"REDIS_PASSWORD":       &cfg.Redis.Password,
		"PRICE_PROVIDER":       &cfg.Oracle.Provider,
		"ALPHAVANTAGE_API_KEY": &cfg.Oracle.AlphaVantageKey,
		"APCA_API_KEY_ID":      &cfg.Oracle.AlpacaKey,
		"APCA_API_SECRET_KEY":  &cfg.Oracle.AlpacaSecret,
		"ALPACA_DATA_URL":      &cfg.Oracle.AlpacaDataURL,
		"JWT_SECRET":           &cfg.Auth.JWTSecret,
		"LOG_LEVEL":            &cfg.Logging.Level,
		"LOG_FORMAT":           &cfg.Logging.Format,
	}
	for key, field := range str {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	durations := map[string]*time.Duration{
		"ORACLE_TIMEOUT":  &cfg.Oracle.Timeout,
		"REDIS_QUOTE_TTL": &cfg.Redis.QuoteTTL,
		"TOKEN_TTL":       &cfg.Auth.TokenTTL,
	}
	for key, field := range durations {
		if v := os.Getenv(key); v != "" {
			dur, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*field = dur
		}
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
		}
		cfg.Database.MaxOpenConns = n
	}

	if v := os.Getenv("STREAM_SYMBOLS"); v != "" {
		var symbols []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
		cfg.Stream.Symbols = symbols
	}
	return nil
}
