package main

import (
	"context"
	"fmt"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/config"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/infrastructure"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/interfaces"
	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/repository"
)

// openSnapshotter connects the configured quota backend. The returned close
// func releases its connection and is never nil.
func openSnapshotter(ctx context.Context, cfg config.QuotaConfig) (interfaces.QuotaSnapshotter, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "file":
		return repository.NewFileSnapshotter(cfg.File), noop, nil
	case "memory":
		return repository.NewMemorySnapshotter(), noop, nil
	case "sqlite":
		db, err := infrastructure.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		snap, err := repository.NewSQLiteSnapshotter(ctx, db)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return snap, func() { db.Close() }, nil
	case "postgres":
		pg, err := infrastructure.NewPostgresClient(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewPostgresSnapshotter(pg.Pool), pg.Close, nil
	case "redis":
		rdb, err := infrastructure.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewRedisSnapshotter(rdb, cfg.RedisKey), func() { rdb.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown quota backend %q", cfg.Backend)
	}
}

// openQuotaStore builds and loads the quota store on top of openSnapshotter.
func openQuotaStore(ctx context.Context, cfg *config.Config, opts ...repository.QuotaOption) (*repository.QuotaStore, func(), error) {
	loc, err := cfg.Quota.Location()
	if err != nil {
		return nil, func() {}, err
	}
	snap, closeFn, err := openSnapshotter(ctx, cfg.Quota)
	if err != nil {
		return nil, closeFn, fmt.Errorf("quota backend %s: %w", cfg.Quota.Backend, err)
	}
	store := repository.NewQuotaStore(snap, append([]repository.QuotaOption{repository.WithLocation(loc)}, opts...)...)
	store.Load(ctx)
	return store, closeFn, nil
}
