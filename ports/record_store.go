package ports

import (
	"context"
	"time"

	"datahub/domain/sheet"
)

// Column is one promoted, typed destination column.
type Column struct {
	Name  string
	Value any
}

// Row is a destination row ready to be written.
type Row struct {
	Key        string
	Columns    []Column
	Payload    sheet.Record
	ProjectID  string
	SourceFile string
	SyncedAt   time.Time
}

// RecordStore persists worksheet rows into destination tables.
type RecordStore interface {
	// ExistingKeys returns the subset of keys already present in table.
	ExistingKeys(ctx context.Context, table, keyColumn string, keys []string) (map[string]struct{}, error)
	Insert(ctx context.Context, table string, row Row) error
	// Update rewrites the typed columns named in columns (all when empty),
	// the payload and the sync timestamp of the row matching row.Key.
	Update(ctx context.Context, table, keyColumn string, row Row, columns []string) error
	Count(ctx context.Context, table string) (int, error)
	CountBy(ctx context.Context, table, column string) (map[string]int, error)
	// Reset deletes every row of table.
	Reset(ctx context.Context, table string) (int64, error)
	Ping(ctx context.Context) error
}
