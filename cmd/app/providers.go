package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/internal/infra/config"
	"github.com/tborlee/points-verts-web/internal/infra/odwb"
	"github.com/tborlee/points-verts-web/internal/infra/snapshotstore"
	"github.com/tborlee/points-verts-web/pkg/metrics"
)

func provideWalksConfig(cfg *config.Config) walks.Config {
	return walks.Config{
		CacheTTL:           cfg.Walks.CacheTTL,
		SessionIdleTimeout: cfg.Walks.SessionIdleTimeout,
	}
}

func provideUpstreamClient(cfg *config.Config) *odwb.Client {
	return odwb.NewClient(odwb.Options{
		BaseURL:  cfg.Upstream.BaseURL,
		Dataset:  cfg.Upstream.Dataset,
		PageSize: cfg.Upstream.PageSize,
		Timeout:  cfg.Upstream.Timeout,
	})
}

func provideCacheCounters() *metrics.CacheCounters {
	return &metrics.CacheCounters{}
}

// provideSnapshotStore picks the first configured backend that answers, in the
// order valkey, postgres, object store, sqlite, memory.
func provideSnapshotStore(cfg *config.Config, logger *slog.Logger) (walks.SnapshotStore, func()) {
	if store, cleanup, ok := valkeySnapshotStore(cfg, logger); ok {
		return store, cleanup
	}
	if store, cleanup, ok := postgresSnapshotStore(cfg, logger); ok {
		return store, cleanup
	}
	if store, ok := objectSnapshotStore(cfg, logger); ok {
		return store, func() {}
	}
	if store, cleanup, ok := sqliteSnapshotStore(cfg, logger); ok {
		return store, cleanup
	}
	logger.Info("no durable snapshot store configured, using memory store")
	return snapshotstore.NewMemoryStore(), func() {}
}

func valkeySnapshotStore(cfg *config.Config, logger *slog.Logger) (walks.SnapshotStore, func(), bool) {
	if !cfg.Cache.Valkey.Enabled {
		return nil, nil, false
	}
	opt, err := buildValkeyOptions(cfg.Cache.Valkey.Addr)
	if err != nil {
		logger.Error("invalid valkey configuration, trying next snapshot store", "error", err)
		return nil, nil, false
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		logger.Error("failed to create valkey client, trying next snapshot store", "error", err)
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		logger.Error("valkey ping failed, trying next snapshot store", "error", err)
		client.Close()
		return nil, nil, false
	}
	logger.Info("valkey snapshot store enabled", "addr", cfg.Cache.Valkey.Addr)
	return snapshotstore.NewValkeyStore(client, cfg.Cache.Valkey.Prefix), client.Close, true
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}

func postgresSnapshotStore(cfg *config.Config, logger *slog.Logger) (walks.SnapshotStore, func(), bool) {
	dsn := strings.TrimSpace(cfg.Cache.Postgres.DSN)
	if dsn == "" {
		return nil, nil, false
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, trying next snapshot store", "error", err)
		return nil, nil, false
	}
	if cfg.Cache.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Cache.Postgres.MaxConns
	}
	if cfg.Cache.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Cache.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, trying next snapshot store", "error", err)
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, trying next snapshot store", "error", err)
		pool.Close()
		return nil, nil, false
	}
	store := snapshotstore.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("postgres schema setup failed, trying next snapshot store", "error", err)
		pool.Close()
		return nil, nil, false
	}
	logger.Info("postgres snapshot store enabled")
	return store, pool.Close, true
}

func objectSnapshotStore(cfg *config.Config, logger *slog.Logger) (walks.SnapshotStore, bool) {
	objCfg := cfg.Cache.ObjectStore
	if !objCfg.Enabled {
		return nil, false
	}
	store, err := snapshotstore.NewObjectStore(snapshotstore.ObjectStoreOptions{
		Endpoint:  objCfg.Endpoint,
		AccessKey: objCfg.AccessKey,
		SecretKey: objCfg.SecretKey,
		Bucket:    objCfg.Bucket,
		Region:    objCfg.Region,
		Prefix:    objCfg.Prefix,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize object store, trying next snapshot store", "error", err)
		return nil, false
	}
	logger.Info("object snapshot store enabled", "bucket", objCfg.Bucket)
	return store, true
}

func sqliteSnapshotStore(cfg *config.Config, logger *slog.Logger) (walks.SnapshotStore, func(), bool) {
	path := strings.TrimSpace(cfg.Cache.SQLite.Path)
	if path == "" {
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := snapshotstore.OpenSQLiteStore(ctx, path)
	if err != nil {
		logger.Error("failed to open sqlite snapshot store, using memory store", "path", path, "error", err)
		return nil, nil, false
	}
	logger.Info("sqlite snapshot store enabled", "path", path)
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("sqlite close failed", "error", err)
		}
	}
	return store, cleanup, true
}
