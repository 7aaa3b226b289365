// Package pg implementa core.Repository sobre PostgreSQL (pgx/v5).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ydethe/quizzy/internal/store/core"
	"github.com/ydethe/quizzy/migrations"
)

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// PoolConfig ajustes opcionales del pool.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, dsn string, pc PoolConfig) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = pc.ConnMaxLifetime
		cfg.MaxConnIdleTime = pc.ConnMaxLifetime
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool, now: time.Now}, nil
}

// Pool expone el pool interno (métricas).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Migrate(ctx context.Context) (*core.MigrationResult, error) {
	ms, err := core.ParseMigrations(migrations.PostgresFS, migrations.PostgresDir)
	if err != nil {
		return nil, err
	}
	return core.Migrate(ctx, s, ms)
}

func (s *Store) EnsureVersionTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	return err
}

func (s *Store) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(versions))
	for _, v := range versions {
		out[int(v)] = true
	}
	return out, nil
}

func (s *Store) Apply(ctx context.Context, m core.Migration) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range m.Statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO _migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
		return err
	})
}

func (s *Store) Save(ctx context.Context, p *core.Passage) error {
	if err := p.Prepare(s.now()); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO passages (id, quiz_name, quiz_hash, email, last_name, first_name, client_ip, answers, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID.String(), p.QuizName, p.QuizHash, p.Email, p.LastName, p.FirstName, p.ClientIP,
		p.Answers, p.Score, p.CreatedAt,
	)
	return err
}

func (s *Store) ListByQuiz(ctx context.Context, quiz string, limit int) ([]core.Passage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, quiz_name, quiz_hash, email, last_name, first_name, client_ip, answers, score, created_at
		FROM passages WHERE quiz_name = $1 ORDER BY created_at DESC LIMIT $2`,
		quiz, core.ClampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Passage, error) {
		var (
			p     core.Passage
			id    string
			score int32
		)
		if err := row.Scan(&id, &p.QuizName, &p.QuizHash, &p.Email, &p.LastName, &p.FirstName,
			&p.ClientIP, &p.Answers, &score, &p.CreatedAt); err != nil {
			return p, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return p, errors.Join(core.ErrInvalidPassage, err)
		}
		p.ID, p.Score = parsed, int(score)
		return p, nil
	})
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
