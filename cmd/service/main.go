package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gitlab.com/dirk.krummacker/identity-service/internal/config"
	"gitlab.com/dirk.krummacker/identity-service/internal/lock"
	"gitlab.com/dirk.krummacker/identity-service/internal/logging"
	"gitlab.com/dirk.krummacker/identity-service/internal/metrics"
	"gitlab.com/dirk.krummacker/identity-service/internal/reconcile"
	"gitlab.com/dirk.krummacker/identity-service/internal/service"
	"gitlab.com/dirk.krummacker/identity-service/internal/store/memstore"
	"gitlab.com/dirk.krummacker/identity-service/internal/store/sqlstore"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > DBDRIVER=sqlite3 DBNAME=identity MIGRATE=true go run main.go
// > DBDRIVER=postgres DATABASE_URL=postgres://... REDIS_URL=redis://localhost:6379/0 go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load configuration:", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("identity service stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	locker, closeLocker, err := openLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	reconciler := reconcile.New(store,
		reconcile.WithLocker(locker),
		reconcile.WithLogger(logger),
		reconcile.WithMetrics(metrics.New(registry)),
	)
	router := service.New(reconciler,
		service.WithLogger(logger),
		service.WithGatherer(registry),
		service.WithGinLogging(cfg.GinLogging),
	).SetupHttpRouter()

	logger.Info().Int("port", cfg.Port).Str("driver", cfg.Database.Driver).Msg("identity service listening")
	return router.Run(fmt.Sprintf(":%d", cfg.Port))
}

// openStore returns the contact store selected by the configured driver together with a function
// that releases it.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (reconcile.ContactStore, func(), error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn().Msg("contacts are kept in memory and lost on exit")
		return memstore.New(), func() {}, nil
	}

	db, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DataSourceName())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("could not close database")
		}
	}
	if cfg.Migrate {
		if err := sqlstore.Migrate(ctx, db); err != nil {
			closeDB()
			return nil, nil, err
		}
		logger.Info().Str("driver", cfg.Database.Driver).Msg("database schema applied")
	}
	store, err := sqlstore.New(db, sqlstore.WithReadRetries(cfg.Database.ReadRetries))
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return store, closeDB, nil
}

// openLocker returns a Redis backed lock when REDIS_URL is set, so that several instances can
// share one database, and an in-process lock otherwise.
func openLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (reconcile.Locker, func(), error) {
	if cfg.Redis.URL == "" {
		return lock.NewLocal(), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("addr", opts.Addr).Dur("ttl", cfg.Lock.TTL).Msg("using redis identity lock")

	locker := lock.NewRedis(client, lock.WithTTL(cfg.Lock.TTL), lock.WithLogger(logger))
	return locker, func() { _ = client.Close() }, nil
}
