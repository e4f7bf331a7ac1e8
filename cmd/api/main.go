package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atharvakonge/tradeshift/internal/config"
	"github.com/atharvakonge/tradeshift/internal/db"
	"github.com/atharvakonge/tradeshift/internal/engine"
	"github.com/atharvakonge/tradeshift/internal/handlers"
	"github.com/atharvakonge/tradeshift/internal/ledger"
	"github.com/atharvakonge/tradeshift/internal/logging"
	"github.com/atharvakonge/tradeshift/internal/models"
	"github.com/atharvakonge/tradeshift/internal/oracle"
	"github.com/atharvakonge/tradeshift/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults or environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run serves until SIGINT or SIGTERM. Everything it opens is closed before
// it returns.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return err
	}

	rdb, err := oracle.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("quote cache disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	prices, err := oracle.New(cfg.Oracle, rdb, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("create price oracle: %w", err)
	}

	userSvc, err := users.New(database, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)
	if err != nil {
		return err
	}
	l := ledger.New(database, models.NewPositionLocks(), logger)

	// Set Gin mode based on configuration
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(&handlers.Handler{
		DB:     database,
		Users:  userSvc,
		Ledger: l,
		Engine: engine.New(database, l, prices, logger),
		Oracle: prices,
		Stream: cfg.Stream,
		Log:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting",
		"addr", "http://localhost:"+cfg.Server.Port,
		"database", database.Driver(),
		"price_provider", cfg.Oracle.Provider,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
