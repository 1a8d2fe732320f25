package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/api/config"
	httpserver "github.com/02loveslollipop/smart-sensor-dashboard/services/api/http"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/cache"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/db"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("db connection error", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []httpserver.Option{httpserver.WithLogger(log)}
	if cfg.RedisAddr != "" {
		c, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB, TTL: cfg.CacheTTL})
		if err != nil {
			log.Warn("redis unavailable, serving without cache", "err", err)
		} else {
			defer c.Close()
			opts = append(opts, httpserver.WithCache(c))
		}
	}

	srv := httpserver.New(cfg, store, opts...)
	log.Info("dashboard API listening", "addr", cfg.ListenAddr(), "table", cfg.Table)

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}

// openStore connects to PostgreSQL, or for memory:// builds an in-process
// store seeded by one synthetic ETL run.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (httpserver.Store, func(), error) {
	if cfg.DatabaseURL != db.MemoryURL {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	store := db.NewMemoryStore()
	transformer := etl.NewTransformer()
	transformer.Uptime = cfg.UptimeMode
	runner := &etl.Runner{
		Extractor:   &etl.Extractor{Log: log},
		Transformer: transformer,
		Loader:      &etl.Loader{Store: store, Table: cfg.Table, Log: log},
		Summary:     store,
		Log:         log,
	}
	if _, err := runner.Run(ctx, cfg.SeedRows); err != nil {
		return nil, nil, err
	}
	log.Info("serving in-memory demo data", "rows", cfg.SeedRows)
	return store, store.Close, nil
}
