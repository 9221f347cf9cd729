package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/xlsx2marc/internal/config"
	"github.com/JonMunkholm/xlsx2marc/internal/core"
	"github.com/JonMunkholm/xlsx2marc/internal/history"
	"github.com/JonMunkholm/xlsx2marc/internal/logging"
	"github.com/JonMunkholm/xlsx2marc/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history_db", cfg.Database.HasDatabase(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"default_language", cfg.Convert.DefaultLanguage,
	)

	ctx := context.Background()

	store, closeStore, err := openHistory(ctx, cfg)
	if err != nil {
		slog.Error("failed to open history store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	service := core.NewService(
		core.WithLimiter(core.NewConversionLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)),
		core.WithHistory(store),
		core.WithDefaultLanguage(cfg.Convert.DefaultLanguage),
		core.WithTimeout(cfg.Convert.Timeout),
		core.WithLogger(slog.Default()),
	)

	server := web.NewServer(service, cfg)

	// Run returns after in-flight conversions have drained, so the history
	// store is still open while they record.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(sigCtx, cfg.Server.Addr(), cfg.Server.ShutdownTimeout); err != nil {
		slog.Error("server stopped", "error", err)
		closeStore()
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openHistory connects to Postgres when a database URL is configured and
// falls back to an in-memory ring otherwise.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if !cfg.Database.HasDatabase() {
		slog.Info("no database configured, keeping history in memory", "capacity", cfg.Convert.HistoryLimit)
		return history.NewMemoryStore(cfg.Convert.HistoryLimit), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := history.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
