package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	agentchat "github.com/set-night/agentchat"
	"github.com/set-night/agentchat/internal/config"
	"github.com/set-night/agentchat/internal/repository"
	"github.com/set-night/agentchat/internal/service"
)

type store interface {
	service.Store
	Migrate(ctx context.Context, migrationsFS fs.FS) error
	Ping(ctx context.Context) error
	Close() error
}

// openStore picks the backend from the DATABASE_URL scheme and returns it
// with the matching migrations.
func openStore(ctx context.Context, cfg *config.Config) (store, fs.FS, error) {
	pc := repository.PoolConfig{
		MinConns:          cfg.PoolSize,
		MaxConns:          cfg.MaxConns(),
		AcquireTimeout:    cfg.PoolTimeout,
		MaxConnLifetime:   cfg.PoolRecycle,
		MaxConnIdleTime:   cfg.PoolIdleTime,
		HealthCheckPeriod: config.PoolHealthCheckPeriod,
	}

	var (
		s       store
		dialect string
		err     error
	)
	switch {
	case repository.IsPostgresURL(cfg.DatabaseURL):
		dialect = "postgres"
		s, err = repository.NewPostgresStore(ctx, cfg.DatabaseURL, pc)
	default:
		path, ok := repository.SQLitePath(cfg.DatabaseURL)
		if !ok {
			return nil, nil, errors.New("unsupported DATABASE_URL scheme, want postgres:// or sqlite://")
		}
		dialect = "sqlite"
		s, err = repository.NewSQLiteStore(ctx, path, pc)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", dialect, err)
	}

	migrations, err := fs.Sub(agentchat.MigrationsFS, "migrations/"+dialect)
	if err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	return s, migrations, nil
}
