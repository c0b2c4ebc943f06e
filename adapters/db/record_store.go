package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"datahub/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// sqliteKeyBatch keeps IN lists under SQLite's bound-parameter limit.
const sqliteKeyBatch = 500

// RecordStore implements ports.RecordStore on sqlx.
type RecordStore struct {
	db  *DB
	now func() time.Time
}

var _ ports.RecordStore = (*RecordStore)(nil)

func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db, now: time.Now}
}

func (s *RecordStore) ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return found, nil
	}
	t, err := ident(table)
	if err != nil {
		return nil, err
	}
	k, err := ident(keyColumn)
	if err != nil {
		return nil, err
	}

	if s.db.Dialect == Postgres {
		var rows []string
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)", k, t, k)
		if err := s.db.SelectContext(ctx, &rows, query, pq.Array(keys)); err != nil {
			return nil, fmt.Errorf("failed to query existing keys in %s: %w", table, err)
		}
		for _, r := range rows {
			found[r] = struct{}{}
		}
		return found, nil
	}

	for start := 0; start < len(keys); start += sqliteKeyBatch {
		end := min(start+sqliteKeyBatch, len(keys))
		query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (?)", k, t, k), keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to build existing keys query: %w", err)
		}
		var rows []string
		if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to query existing keys in %s: %w", table, err)
		}
		for _, r := range rows {
			found[r] = struct{}{}
		}
	}
	return found, nil
}

func (s *RecordStore) Insert(ctx context.Context, table string, row ports.Row) error {
	t, err := ident(table)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(row.Columns)+4)
	args := make([]any, 0, len(row.Columns)+4)
	for _, c := range row.Columns {
		n, err := ident(c.Name)
		if err != nil {
			return err
		}
		names = append(names, n)
		args = append(args, s.arg(c.Value))
	}
	names = append(names, "raw_data", "project_id", "source_file", "sync_timestamp")
	args = append(args, row.Payload, nullable(row.ProjectID), nullable(row.SourceFile), s.db.timeArg(s.syncedAt(row)))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t, strings.Join(names, ", "), placeholders(len(names)))
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to insert %q into %s: %w", row.Key, table, err)
	}
	return nil
}

func (s *RecordStore) Update(ctx context.Context, table, keyColumn string, row ports.Row, columns []string) error {
	t, err := ident(table)
	if err != nil {
		return err
	}
	k, err := ident(keyColumn)
	if err != nil {
		return err
	}

	var only map[string]bool
	if len(columns) > 0 {
		only = make(map[string]bool, len(columns))
		for _, c := range columns {
			only[c] = true
		}
	}

	sets := make([]string, 0, len(row.Columns)+4)
	args := make([]any, 0, len(row.Columns)+5)
	for _, c := range row.Columns {
		if c.Name == keyColumn || (only != nil && !only[c.Name]) {
			continue
		}
		n, err := ident(c.Name)
		if err != nil {
			return err
		}
		sets = append(sets, n+" = ?")
		args = append(args, s.arg(c.Value))
	}
	sets = append(sets, "raw_data = ?", "source_file = ?", "sync_timestamp = ?", "updated_at = ?")
	args = append(args, row.Payload, nullable(row.SourceFile), s.db.timeArg(s.syncedAt(row)), s.db.timeArg(s.now()), row.Key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t, strings.Join(sets, ", "), k)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update %q in %s: %w", row.Key, table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to update %q in %s: no matching row", row.Key, table)
	}
	return nil
}

func (s *RecordStore) Count(ctx context.Context, table string) (int, error) {
	t, err := ident(table)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+t); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// CountBy groups rows by column. NULL values are counted under "".
func (s *RecordStore) CountBy(ctx context.Context, table, column string) (map[string]int, error) {
	t, err := ident(table)
	if err != nil {
		return nil, err
	}
	c, err := ident(column)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT COALESCE(CAST(%s AS TEXT), '') AS value, COUNT(*) AS n FROM %s GROUP BY 1", c, t)
	var groups []struct {
		Value string `db:"value"`
		N     int    `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("failed to count %s by %s: %w", table, column, err)
	}
	out := make(map[string]int, len(groups))
	for _, g := range groups {
		out[g.Value] += g.N
	}
	return out, nil
}

func (s *RecordStore) Reset(ctx context.Context, table string) (int64, error) {
	t, err := ident(table)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+t)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (s *RecordStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *RecordStore) syncedAt(row ports.Row) time.Time {
	if row.SyncedAt.IsZero() {
		return s.now()
	}
	return row.SyncedAt
}

func (s *RecordStore) arg(v any) any {
	if t, ok := v.(time.Time); ok {
		return s.db.timeArg(t)
	}
	return v
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
