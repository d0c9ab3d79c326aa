package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/tendant/simple-oidc/pkg/config"
	"github.com/tendant/simple-oidc/pkg/oauth2client"
	"github.com/tendant/simple-oidc/pkg/oidc"
	"github.com/tendant/simple-oidc/pkg/user"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// stores groups the repositories for the selected storage driver
type stores struct {
	clients oauth2client.Repository
	users   user.Repository
	codes   oidc.CodeRepository
	close   func()
}

func openStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	switch cfg.Driver {
	case config.StoragePostgres:
		return openPostgres(ctx, cfg)
	case config.StorageSQLite:
		return openSQLite(ctx, cfg)
	default:
		slog.Warn("Using in-memory storage, data is lost on restart")
		return &stores{
			clients: oauth2client.NewInMemoryRepository(),
			users:   user.NewInMemoryRepository(),
			codes:   oidc.NewInMemoryCodeRepository(),
			close:   func() {},
		}, nil
	}
}

func openPostgres(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	pool, err := pgxpool.New(ctx, cfg.Postgres.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Postgres.Database, "host", cfg.Postgres.Host,
			"port", cfg.Postgres.Port, "user", cfg.Postgres.User, "schema", cfg.Postgres.Schema)
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	clients, err := oauth2client.NewPostgresRepository(pool, cfg.ClientSecretKey)
	if err != nil {
		pool.Close()
		return nil, err
	}
	users, err := user.NewPostgresRepository(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	codes, err := oidc.NewPostgresCodeRepository(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	if err := migrate(ctx, clients, users, codes); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("Connected to PostgreSQL", "host", cfg.Postgres.Host, "db", cfg.Postgres.Database)
	return &stores{clients: clients, users: users, codes: codes, close: pool.Close}, nil
}

func openSQLite(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	db, err := sql.Open("sqlite", cfg.SQLitePath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed closing sqlite database", "err", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	clients, err := oauth2client.NewSQLiteRepository(db, cfg.ClientSecretKey)
	if err != nil {
		closeDB()
		return nil, err
	}
	users, err := user.NewSQLiteRepository(db)
	if err != nil {
		closeDB()
		return nil, err
	}
	codes, err := oidc.NewSQLiteCodeRepository(db)
	if err != nil {
		closeDB()
		return nil, err
	}

	if err := migrate(ctx, clients, users, codes); err != nil {
		closeDB()
		return nil, err
	}
	slog.Info("Opened SQLite database", "path", cfg.SQLitePath)
	return &stores{clients: clients, users: users, codes: codes, close: closeDB}, nil
}

func migrate(ctx context.Context, ms ...migrator) error {
	for _, m := range ms {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
