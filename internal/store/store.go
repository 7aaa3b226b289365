// Package store abre el repositorio de resultados según la configuración.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ydethe/quizzy/internal/store/core"
	"github.com/ydethe/quizzy/internal/store/memory"
	"github.com/ydethe/quizzy/internal/store/pg"
	"github.com/ydethe/quizzy/internal/store/sqlite"
)

type Config struct {
	Driver   string // memory | postgres | sqlite
	DSN      string
	Postgres struct {
		MaxConns        int32
		MinConns        int32
		ConnMaxLifetime time.Duration
	}
	// AutoMigrate aplica el esquema embebido al abrir (sqlite/postgres).
	AutoMigrate bool
}

type migrator interface {
	Migrate(ctx context.Context) (*core.MigrationResult, error)
}

// Open devuelve el repositorio del driver configurado.
func Open(ctx context.Context, cfg Config) (core.Repository, error) {
	var (
		repo core.Repository
		err  error
	)
	switch strings.ToLower(cfg.Driver) {
	case "memory", "":
		return memory.New(), nil
	case "postgres", "pg", "postgresql":
		repo, err = pg.New(ctx, cfg.DSN, pg.PoolConfig{
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
	case "sqlite", "sqlite3":
		repo, err = sqlite.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if _, err := Migrate(ctx, repo); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// Migrate aplica el esquema si el repositorio lo soporta (memory no lo necesita).
func Migrate(ctx context.Context, repo core.Repository) (*core.MigrationResult, error) {
	m, ok := repo.(migrator)
	if !ok {
		return &core.MigrationResult{}, nil
	}
	return m.Migrate(ctx)
}
