// Package db stores worksheet records and sync runs in Postgres or SQLite.
package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"datahub/adapters/db/migrations"
	"datahub/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
)

// Dialect is the SQL flavour behind a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sqliteTimeLayout sorts lexically in chronological order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// DB is a sqlx handle that knows its dialect.
type DB struct {
	*sqlx.DB
	Dialect Dialect
}

// DialectOf infers the dialect from a connection URL. Postgres URLs start
// with postgres:// or postgresql://; sqlite:, file: and *.db paths are SQLite.
func DialectOf(url string) (Dialect, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return Postgres, nil
	case strings.HasPrefix(url, "sqlite:"), strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"), strings.HasSuffix(url, ".sqlite"), url == ":memory:":
		return SQLite, nil
	}
	return "", errors.ConfigInvalid("unsupported DATABASE_URL: expected a postgres:// URL or a sqlite path")
}

// Open connects and pings the database.
func Open(ctx context.Context, url string) (*DB, error) {
	dialect, err := DialectOf(url)
	if err != nil {
		return nil, err
	}

	var conn *sqlx.DB
	switch dialect {
	case Postgres:
		conn, err = sqlx.Open("postgres", url)
		if err != nil {
			return nil, errors.DatabaseError("failed to open database", err)
		}
		conn.SetMaxOpenConns(10)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)
	case SQLite:
		dsn, err := sqliteDSN(url)
		if err != nil {
			return nil, err
		}
		conn, err = sqlx.Open("sqlite3", dsn)
		if err != nil {
			return nil, errors.DatabaseError("failed to open database", err)
		}
		// one writer; concurrent upserts queue on the pool
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, errors.DatabaseError("failed to ping database", err)
	}
	return &DB{DB: conn, Dialect: dialect}, nil
}

func sqliteDSN(url string) (string, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "sqlite:"), "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)", nil
}

// Migrate applies pending schema migrations for the dialect.
func (d *DB) Migrate(ctx context.Context, logger zerolog.Logger) ([]string, error) {
	return d.Migrator(logger).Up(ctx)
}

func (d *DB) Migrator(logger zerolog.Logger) *migrations.Migrator {
	return migrations.NewMigrator(d.DB, string(d.Dialect), logger)
}

// timeArg binds a timestamp. SQLite stores a fixed-width UTC string so that
// ORDER BY on text stays chronological.
func (d *DB) timeArg(t time.Time) any {
	if d.Dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ident quotes a table or column name after checking it is a plain identifier.
func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", errors.InvalidInput(fmt.Sprintf("invalid identifier %q", name))
	}
	return `"` + name + `"`, nil
}
