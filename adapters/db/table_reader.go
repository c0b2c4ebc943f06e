package db

import (
	"context"
	"fmt"

	"datahub/domain/sheet"
	"datahub/ports"
)

var _ ports.TableReader = (*RecordStore)(nil)

type storedRow struct {
	ID         int64        `db:"id"`
	ProjectID  *string      `db:"project_id"`
	SourceFile *string      `db:"source_file"`
	SyncedAt   dbTime       `db:"sync_timestamp"`
	Data       sheet.Record `db:"raw_data"`
}

func (s *RecordStore) Page(ctx context.Context, table string, limit, offset int) ([]ports.StoredRow, error) {
	t, err := ident(table)
	if err != nil {
		return nil, err
	}
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT id, project_id, source_file, sync_timestamp, raw_data
		FROM %s
		ORDER BY sync_timestamp DESC, id DESC
		LIMIT ? OFFSET ?`, t))

	var rows []storedRow
	if err := s.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	out := make([]ports.StoredRow, len(rows))
	for i, r := range rows {
		out[i] = ports.StoredRow{
			ID:         r.ID,
			ProjectID:  r.ProjectID,
			SourceFile: r.SourceFile,
			SyncedAt:   r.SyncedAt.Time,
			Data:       r.Data,
		}
	}
	return out, nil
}

func (s *RecordStore) Summary(ctx context.Context, table string) (ports.TableSummary, error) {
	t, err := ident(table)
	if err != nil {
		return ports.TableSummary{}, err
	}
	var row struct {
		Total int    `db:"total"`
		First dbTime `db:"first_sync"`
		Last  dbTime `db:"last_sync"`
	}
	query := fmt.Sprintf(`
		SELECT COUNT(*) AS total, MIN(sync_timestamp) AS first_sync, MAX(sync_timestamp) AS last_sync
		FROM %s`, t)
	if err := s.db.GetContext(ctx, &row, query); err != nil {
		return ports.TableSummary{}, fmt.Errorf("failed to summarise %s: %w", table, err)
	}

	summary := ports.TableSummary{Total: row.Total}
	if row.First.Valid {
		summary.FirstSync = &row.First.Time
	}
	if row.Last.Valid {
		summary.LastSync = &row.Last.Time
	}
	return summary, nil
}

func (s *RecordStore) PayloadKeys(ctx context.Context, table string) ([]string, error) {
	t, err := ident(table)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT DISTINCT j.key AS name
		FROM %s, json_each(%s.raw_data) AS j
		WHERE %s.raw_data IS NOT NULL
		ORDER BY name`, t, t, t)
	if s.db.Dialect == Postgres {
		query = fmt.Sprintf(`
			SELECT DISTINCT jsonb_object_keys(raw_data) AS name
			FROM %s
			WHERE raw_data IS NOT NULL
			ORDER BY name`, t)
	}

	keys := []string{}
	if err := s.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("failed to list payload keys of %s: %w", table, err)
	}
	return keys, nil
}
