package core

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Migration es un archivo {version}_{name}.sql partido en sentencias.
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// MigrationResult resultado de aplicar migraciones.
type MigrationResult struct {
	Applied  []int
	Skipped  []int
	Duration time.Duration
}

// MigrationTarget abstrae pgx vs database/sql.
type MigrationTarget interface {
	EnsureVersionTable(ctx context.Context) error
	AppliedVersions(ctx context.Context) (map[int]bool, error)
	// Apply ejecuta las sentencias y registra la versión en una transacción.
	Apply(ctx context.Context, m Migration) error
}

var migrationFilePattern = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// ParseMigrations lee dir dentro de fsys, ordenado por versión.
func ParseMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var out []Migration
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, _ := strconv.Atoi(m[1])
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations: version %d used by %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: m[2], Statements: splitStatements(string(content))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// splitStatements corta por ';' al final de línea. Alcanza para DDL sin funciones.
func splitStatements(sql string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}

// Migrate aplica las migraciones pendientes en orden; se detiene en la primera que falla.
func Migrate(ctx context.Context, t MigrationTarget, migrations []Migration) (*MigrationResult, error) {
	start := time.Now()
	res := &MigrationResult{}
	if err := t.EnsureVersionTable(ctx); err != nil {
		return res, fmt.Errorf("creating migrations table: %w", err)
	}
	applied, err := t.AppliedVersions(ctx)
	if err != nil {
		return res, fmt.Errorf("getting applied migrations: %w", err)
	}
	for _, m := range migrations {
		if applied[m.Version] {
			res.Skipped = append(res.Skipped, m.Version)
			continue
		}
		if err := t.Apply(ctx, m); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("applying migration %d_%s: %w", m.Version, m.Name, err)
		}
		res.Applied = append(res.Applied, m.Version)
	}
	res.Duration = time.Since(start)
	return res, nil
}
