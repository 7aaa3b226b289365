// Package sqlite implementa core.Repository sobre modernc.org/sqlite (sin cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ydethe/quizzy/internal/store/core"
	"github.com/ydethe/quizzy/migrations"
)

// stampLayout es de ancho fijo para que ORDER BY created_at sobre TEXT sea cronológico.
const stampLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New abre (o crea) la base en dsn, p.ej. "file:quizzy.db" o ":memory:".
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// una sola conexión: ":memory:" es por conexión y sqlite serializa escrituras igual
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Migrate aplica el esquema embebido.
func (s *Store) Migrate(ctx context.Context) (*core.MigrationResult, error) {
	ms, err := core.ParseMigrations(migrations.SQLiteFS, migrations.SQLiteDir)
	if err != nil {
		return nil, err
	}
	return core.Migrate(ctx, s, ms)
}

func (s *Store) EnsureVersionTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	return err
}

func (s *Store) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM _migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (s *Store) Apply(ctx context.Context, m core.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO _migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Name, s.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Save(ctx context.Context, p *core.Passage) error {
	if err := p.Prepare(s.now()); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO passages (id, quiz_name, quiz_hash, email, last_name, first_name, client_ip, answers, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.QuizName, p.QuizHash, p.Email, p.LastName, p.FirstName, p.ClientIP,
		p.Answers, p.Score, p.CreatedAt.UTC().Format(stampLayout),
	)
	return err
}

func (s *Store) ListByQuiz(ctx context.Context, quiz string, limit int) ([]core.Passage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quiz_name, quiz_hash, email, last_name, first_name, client_ip, answers, score, created_at
		FROM passages WHERE quiz_name = ? ORDER BY created_at DESC LIMIT ?`,
		quiz, core.ClampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Passage
	for rows.Next() {
		var (
			p         core.Passage
			id, stamp string
		)
		if err := rows.Scan(&id, &p.QuizName, &p.QuizHash, &p.Email, &p.LastName, &p.FirstName,
			&p.ClientIP, &p.Answers, &p.Score, &stamp); err != nil {
			return nil, err
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("sqlite: passage id: %w", err)
		}
		if p.CreatedAt, err = time.Parse(stampLayout, stamp); err != nil {
			return nil, fmt.Errorf("sqlite: passage created_at: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *Store) Close() error                   { return s.db.Close() }
