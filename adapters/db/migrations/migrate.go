package migrations

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Migrator applies the embedded SQL migrations for one dialect.
type Migrator struct {
	db     *sqlx.DB
	dir    string
	logger zerolog.Logger
}

// NewMigrator creates a migrator. dialect names the migration directory
// ("postgres" or "sqlite").
func NewMigrator(db *sqlx.DB, dialect string, logger zerolog.Logger) *Migrator {
	return &Migrator{db: db, dir: dialect, logger: logger.With().Str("component", "migrations").Logger()}
}

// File is one versioned migration.
type File struct {
	Version  string
	Name     string
	Checksum string
	sql      string
}

// Status is a migration and whether it has been applied.
type Status struct {
	Version   string `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
	Drifted   bool   `json:"drifted,omitempty"`
}

// Up applies every pending migration in version order and returns the
// versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	var done []string
	for _, f := range files {
		if rec, ok := applied[f.Version]; ok {
			if rec.checksum != f.Checksum {
				m.logger.Warn().Str("version", f.Version).Msg("Applied migration differs from embedded file")
			}
			continue
		}
		if err := m.apply(ctx, f); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", f.Version, err)
		}
		m.logger.Info().Str("version", f.Version).Str("name", f.Name).Msg("Applied migration")
		done = append(done, f.Version)
	}
	return done, nil
}

// Status reports every embedded migration with its applied state.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.Files()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		s := Status{Version: f.Version, Name: f.Name}
		if rec, ok := applied[f.Version]; ok {
			s.Applied = true
			s.AppliedAt = rec.appliedAt
			s.Drifted = rec.checksum != f.Checksum
		}
		out = append(out, s)
	}
	return out, nil
}

// Files lists the embedded migrations for the dialect, sorted by version.
// Filenames follow 001_description.sql.
func (m *Migrator) Files() ([]File, error) {
	entries, err := fs.ReadDir(files, m.dir)
	if err != nil {
		return nil, fmt.Errorf("unknown migration dialect %q: %w", m.dir, err)
	}

	var out []File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		version, name, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".sql"), "_")
		if !ok {
			continue
		}
		data, err := files.ReadFile(path.Join(m.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, File{Version: version, Name: name, Checksum: checksum(data), sql: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

type appliedMigration struct {
	checksum  string
	appliedAt string
}

func (m *Migrator) applied(ctx context.Context) (map[string]appliedMigration, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum, CAST(applied_at AS TEXT) FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var version string
		var rec appliedMigration
		var at *string
		if err := rows.Scan(&version, &rec.checksum, &at); err != nil {
			return nil, err
		}
		if at != nil {
			rec.appliedAt = *at
		}
		applied[version] = rec
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, f File) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, f.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	insert := tx.Rebind("INSERT INTO schema_migrations (version, checksum) VALUES (?, ?)")
	if _, err := tx.ExecContext(ctx, insert, f.Version, f.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
