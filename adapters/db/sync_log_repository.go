package db

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"datahub/domain/syncrun"
	"datahub/ports"
)

const syncLogColumns = `id, worksheet_name, sync_started_at, sync_completed_at, status,
	records_processed, records_inserted, records_updated, records_failed,
	error_message, error_details, duration_ms, file_url, file_size_bytes`

// SyncLogRepository implements ports.SyncLogRepository over sharepoint_sync_log.
type SyncLogRepository struct {
	db *DB
}

var _ ports.SyncLogRepository = (*SyncLogRepository)(nil)

func NewSyncLogRepository(db *DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Start(ctx context.Context, run *syncrun.Run) error {
	query := r.db.Rebind(`
		INSERT INTO sharepoint_sync_log (id, worksheet_name, sync_started_at, status, file_url, file_size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Worksheet, r.db.timeArg(run.StartedAt), run.Status, run.FileURL, run.FileSizeBytes)
	if err != nil {
		return fmt.Errorf("failed to record sync start: %w", err)
	}
	return nil
}

func (r *SyncLogRepository) Finish(ctx context.Context, run *syncrun.Run) error {
	var completed any
	if run.CompletedAt != nil {
		completed = r.db.timeArg(*run.CompletedAt)
	}
	query := r.db.Rebind(`
		UPDATE sharepoint_sync_log SET
			sync_completed_at = ?, status = ?,
			records_processed = ?, records_inserted = ?, records_updated = ?, records_failed = ?,
			error_message = ?, error_details = ?, duration_ms = ?, file_size_bytes = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		completed, run.Status,
		run.Processed, run.Inserted, run.Updated, run.Failed,
		run.ErrorMessage, run.ErrorDetails, run.DurationMs, run.FileSizeBytes,
		run.ID)
	if err != nil {
		return fmt.Errorf("failed to record sync result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to record sync result: run %s not found", run.ID)
	}
	return nil
}

func (r *SyncLogRepository) Recent(ctx context.Context, worksheet string, limit int) ([]*syncrun.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []logRow
	var err error
	if worksheet == "" {
		err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
			SELECT `+syncLogColumns+` FROM sharepoint_sync_log
			ORDER BY sync_started_at DESC LIMIT ?`), limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, r.db.Rebind(`
			SELECT `+syncLogColumns+` FROM sharepoint_sync_log
			WHERE worksheet_name = ?
			ORDER BY sync_started_at DESC LIMIT ?`), worksheet, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	out := make([]*syncrun.Run, len(rows))
	for i := range rows {
		out[i] = rows[i].run()
	}
	return out, nil
}

func (r *SyncLogRepository) Latest(ctx context.Context) (map[string]*syncrun.Run, error) {
	var rows []logRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT l.id, l.worksheet_name, l.sync_started_at, l.sync_completed_at, l.status,
			l.records_processed, l.records_inserted, l.records_updated, l.records_failed,
			l.error_message, l.error_details, l.duration_ms, l.file_url, l.file_size_bytes
		FROM sharepoint_sync_log l
		JOIN (
			SELECT worksheet_name, MAX(sync_started_at) AS started
			FROM sharepoint_sync_log
			GROUP BY worksheet_name
		) m ON m.worksheet_name = l.worksheet_name AND m.started = l.sync_started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest sync runs: %w", err)
	}
	out := make(map[string]*syncrun.Run, len(rows))
	for i := range rows {
		run := rows[i].run()
		out[run.Worksheet] = run
	}
	return out, nil
}

// logRow mirrors syncrun.Run with timestamps that scan from either dialect.
type logRow struct {
	ID            string          `db:"id"`
	Worksheet     string          `db:"worksheet_name"`
	StartedAt     dbTime          `db:"sync_started_at"`
	CompletedAt   dbTime          `db:"sync_completed_at"`
	Status        syncrun.Status  `db:"status"`
	Processed     int             `db:"records_processed"`
	Inserted      int             `db:"records_inserted"`
	Updated       int             `db:"records_updated"`
	Failed        int             `db:"records_failed"`
	ErrorMessage  *string         `db:"error_message"`
	ErrorDetails  syncrun.Details `db:"error_details"`
	DurationMs    *int64          `db:"duration_ms"`
	FileURL       *string         `db:"file_url"`
	FileSizeBytes *int64          `db:"file_size_bytes"`
}

func (l *logRow) run() *syncrun.Run {
	r := &syncrun.Run{
		ID:            l.ID,
		Worksheet:     l.Worksheet,
		StartedAt:     l.StartedAt.Time,
		Status:        l.Status,
		Processed:     l.Processed,
		Inserted:      l.Inserted,
		Updated:       l.Updated,
		Failed:        l.Failed,
		ErrorMessage:  l.ErrorMessage,
		ErrorDetails:  l.ErrorDetails,
		DurationMs:    l.DurationMs,
		FileURL:       l.FileURL,
		FileSizeBytes: l.FileSizeBytes,
	}
	if l.CompletedAt.Valid {
		t := l.CompletedAt.Time
		r.CompletedAt = &t
	}
	return r
}

var timeLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// dbTime scans a nullable timestamp stored natively or as text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime{}
		return nil
	case time.Time:
		*t = dbTime{Time: v.UTC(), Valid: true}
		return nil
	case int64:
		*t = dbTime{Time: time.Unix(v, 0).UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (t dbTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}
