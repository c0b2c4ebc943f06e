package ports

import (
	"context"
	"time"

	"datahub/domain/sheet"
)

// StoredRow is a synced row as reporting clients read it.
type StoredRow struct {
	ID         int64        `json:"id"`
	ProjectID  *string      `json:"project_id"`
	SourceFile *string      `json:"source_file"`
	SyncedAt   time.Time    `json:"synced_at"`
	Data       sheet.Record `json:"data"`
}

// TableSummary describes the contents of a destination table.
type TableSummary struct {
	Total     int        `json:"total_records"`
	FirstSync *time.Time `json:"first_sync"`
	LastSync  *time.Time `json:"last_sync"`
}

// TableReader reads destination tables for reporting clients such as Power BI.
type TableReader interface {
	// Page returns rows newest sync first.
	Page(ctx context.Context, table string, limit, offset int) ([]StoredRow, error)
	Summary(ctx context.Context, table string) (TableSummary, error)
	// PayloadKeys lists the distinct source headers found in the stored payloads.
	PayloadKeys(ctx context.Context, table string) ([]string, error)
}
