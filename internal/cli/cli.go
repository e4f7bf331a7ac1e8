// Package cli implements tradectl, the operator command line. Every command
// works directly on the configured store and price source.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Rhymond/go-money"
	"github.com/atharvakonge/tradeshift/internal/config"
	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/engine"
	"github.com/atharvakonge/tradeshift/internal/ledger"
	"github.com/atharvakonge/tradeshift/internal/logging"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/atharvakonge/tradeshift/internal/oracle"
	"github.com/atharvakonge/tradeshift/internal/users"
	"github.com/go-redis/redis/v8"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

var configPath = flag.String("config", "config.yaml", "Path to the YAML configuration file")

// stdout receives command output.
var stdout io.Writer = os.Stdout

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&migrateCmd{}, "store")
	c.Register(&grantRoleCmd{}, "store")

	c.Register(&quoteCmd{}, "market")

	c.Register(&portfoliosCmd{}, "trading")
	c.Register(&orderCmd{}, "trading")
	c.Register(&exportOrdersCmd{}, "trading")
}

// env is the set of services a command runs against.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *db.DB
	rdb    *redis.Client
	oracle oracle.Oracle
	ledger *ledger.Ledger
	engine *engine.Engine
	users  *users.Service
	out    io.Writer
}

// openEnv loads the configuration and connects to the store and the price
// source. Logs go to stderr so stdout stays clean for command output.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	log := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, "text")

	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rdb, err := oracle.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("quote cache disabled", "error", err)
		rdb = nil
	}
	e := &env{cfg: cfg, log: log, db: database, rdb: rdb, out: stdout}

	e.oracle, err = oracle.New(cfg.Oracle, rdb, cfg.Redis, log)
	if err != nil {
		e.Close()
		return nil, err
	}

	// Commands never issue tokens, so any non-empty secret will do.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = "tradectl"
	}
	e.users, err = users.New(database, secret, cfg.Auth.TokenTTL, log)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.ledger = ledger.New(database, models.NewPositionLocks(), log)
	e.engine = engine.New(database, e.ledger, e.oracle, log)
	return e, nil
}

func (e *env) Close() {
	if e.rdb != nil {
		e.rdb.Close()
	}
	e.db.Close()
}

// userID resolves a username given on the command line.
func (e *env) userID(ctx context.Context, username string) (string, error) {
	u, err := db.GetUserByUsername(ctx, e.db, username)
	if err != nil {
		return "", fmt.Errorf("user %q: %w", username, err)
	}
	return u.ID, nil
}

// usd renders a decimal amount as US dollars, e.g. "$1,234.50".
func usd(d decimal.Decimal) string {
	return money.New(d.Shift(2).Round(0).IntPart(), money.USD).Display()
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}
