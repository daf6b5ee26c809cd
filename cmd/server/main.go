/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the colmado credit ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, optional .env)
  2. Build the logger
  3. Open the durable store selected by STORE_DRIVER
  4. Load every collection (seed first run, migrate legacy records)
  5. Create engine, reports, token issuer and API handler
  6. Start the audit scheduler
  7. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the audit scheduler
  4. Flush every collection to the store
  5. Close the store and the log file

EXAMPLES:
  # Run with file database
  DB_PATH=./data/ledger.db ./server

  # Run in memory with demo data
  STORE_DRIVER=memory SEED_DEMO=true ./server

  # Run against Redis
  STORE_DRIVER=redis REDIS_URL=redis://localhost:6379/0 ./server

SEE ALSO:
  - config/config.go: Every environment variable
  - api/server.go: Router configuration
  - ledger/repository.go: Load and Flush
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarjetacolmado/ledger/api"
	"github.com/tarjetacolmado/ledger/auth"
	"github.com/tarjetacolmado/ledger/config"
	"github.com/tarjetacolmado/ledger/ledger"
	"github.com/tarjetacolmado/ledger/logging"
	"github.com/tarjetacolmado/ledger/report"
	"github.com/tarjetacolmado/ledger/store/memory"
	"github.com/tarjetacolmado/ledger/store/redis"
	"github.com/tarjetacolmado/ledger/store/sqlite"
)

// backend is what every store package provides.
type backend interface {
	ledger.DurableStore
	ledger.AuditLog
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := logging.New(logging.Config{
		Level:      cfg.LogLevel,
		Pretty:     !cfg.IsProduction(),
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging configuration: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	// Initialize store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer closeStore.Close()

	repo := ledger.NewRepository(store, ledger.Options{
		Seed: ledger.SeedOptions{
			AdminPassword: cfg.BootstrapAdminPassword,
			Demo:          cfg.SeedDemo,
		},
		DefaultRate: cfg.InterestRate(),
		Logger:      logger,
	})
	if err := repo.Load(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to load ledger")
	}

	engine := ledger.NewEngine(repo,
		ledger.WithDefaultRate(cfg.InterestRate()),
		ledger.WithLogger(logger),
	)
	reports := report.New(repo, report.Options{
		StoreShare:    cfg.StoreShare(),
		PlatformShare: cfg.PlatformShare(),
		Location:      cfg.Location(),
	})
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration())

	// Initialize handler
	handler := api.NewHandler(engine, reports, issuer, store, logger)

	// Start audit scheduler
	scheduler := api.NewAuditScheduler(handler)
	interval, _ := cfg.AuditEvery()
	scheduler.CheckInterval = interval
	scheduler.Enabled = interval > 0
	scheduler.Start()

	// Create router
	router := api.NewRouter(handler, cfg.AllowedOrigins())

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Port).Str("driver", cfg.StoreDriver).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	scheduler.Stop()
	flush(ctx, repo, logger)

	logger.Info().Msg("server stopped")
}

func openStore(cfg *config.Config) (backend, io.Closer, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nopCloser{}, nil
	case "redis":
		s, err := redis.New(context.Background(), cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func flush(ctx context.Context, repo *ledger.Repository, logger zerolog.Logger) {
	if err := repo.Flush(ctx); err != nil {
		logger.Error().Err(err).Msg("final flush failed")
		return
	}
	logger.Info().Msg("ledger flushed")
}
