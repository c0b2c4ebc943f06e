// Package worksheet defines the typed schema of every synced worksheet and
// the connector that extracts and reconciles it.
package worksheet

import (
	"context"
	"fmt"
	"time"

	"datahub/domain/sheet"
	"datahub/domain/syncrun"
	"datahub/internal/reconcile"
	"datahub/ports"

	"github.com/rs/zerolog"
)

// File identifies which configured workbook a worksheet lives in.
type File string

const (
	FileLawley  File = "lawley"
	FileMohadin File = "mohadin"
)

// Row is implemented only by the worksheet schemas in this package.
type Row interface {
	Key() string
	Columns() []ports.Column
	Payload() sheet.Record
	isRow()
}

// Descriptor is the fixed configuration of one worksheet connector.
type Descriptor struct {
	Name      string           `json:"name"`
	Table     string           `json:"table"`
	KeyColumn string           `json:"key_column"`
	KeyField  string           `json:"key_field,omitempty"`
	HeaderRow int              `json:"header_row"`
	Policy    reconcile.Policy `json:"-"`
	File      File             `json:"file"`

	InsertChunk   int      `json:"insert_chunk"`
	UpdateChunk   int      `json:"update_chunk"`
	UpdateColumns []string `json:"update_columns,omitempty"`
}

// AppendOnly reports whether existing rows are left untouched.
func (d Descriptor) AppendOnly() bool {
	return d.Policy == reconcile.AppendOnly
}

// Options carry per-run values stamped onto every written row.
type Options struct {
	ProjectID     string
	SourceFile    string
	ProgressEvery int
	Parallelism   int
}

// Report is what one connector run produced.
type Report struct {
	Processed int
	reconcile.Result
}

// Counts converts the report into sync-log counters.
func (r Report) Counts() syncrun.Counts {
	return syncrun.Counts{
		Processed: r.Processed,
		Inserted:  r.Inserted,
		Updated:   r.Updated,
		Skipped:   r.Skipped,
		Failed:    r.Failed,
	}
}

// Job is the type-erased view of a connector used by the orchestrator.
type Job interface {
	Descriptor() Descriptor
	Run(ctx context.Context, ws ports.Worksheet, store ports.RecordStore, opts Options) (Report, error)
}

// Connector extracts rows of type T from a worksheet and reconciles them.
type Connector[T Row] struct {
	desc  Descriptor
	build func(sheet.Record) (T, bool)
}

// NewConnector creates a connector. build returns false for records that are
// not data rows for this worksheet.
func NewConnector[T Row](desc Descriptor, build func(sheet.Record) (T, bool)) *Connector[T] {
	if desc.HeaderRow <= 0 {
		desc.HeaderRow = 1
	}
	if desc.KeyColumn == "" {
		desc.KeyColumn = desc.KeyField
	}
	return &Connector[T]{desc: desc, build: build}
}

func (c *Connector[T]) Descriptor() Descriptor {
	return c.desc
}

// Extract reads the header row, then every row below it.
func (c *Connector[T]) Extract(ctx context.Context, ws ports.Worksheet) ([]T, error) {
	logger := zerolog.Ctx(ctx)

	headerRow, err := ws.Row(c.desc.HeaderRow)
	if err != nil {
		return nil, fmt.Errorf("failed to read header row %d of %s: %w", c.desc.HeaderRow, c.desc.Name, err)
	}
	headers := sheet.NormalizeHeaders(headerRow)
	if len(headers) == 0 {
		return nil, fmt.Errorf("worksheet %s has no headers on row %d", c.desc.Name, c.desc.HeaderRow)
	}

	logger.Info().
		Int("columns", len(headers)).
		Int("rows", ws.RowCount()).
		Msgf("Extracting %s data", c.desc.Name)

	rows, err := ws.Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of %s: %w", c.desc.Name, err)
	}

	var out []T
	dropped := 0
	for _, row := range rows {
		if row.Number <= c.desc.HeaderRow {
			continue
		}
		rec, ok := sheet.ExtractRow(row, headers, c.desc.KeyField)
		if !ok {
			continue
		}
		item, ok := c.build(rec)
		if !ok {
			dropped++
			continue
		}
		out = append(out, item)
	}

	logger.Info().Int("records", len(out)).Int("rejected", dropped).Msgf("Extracted %s records", c.desc.Name)
	return out, nil
}

// Upsert reconciles records with the destination table.
func (c *Connector[T]) Upsert(ctx context.Context, store ports.RecordStore, records []T, opts Options) (reconcile.Result, error) {
	syncedAt := time.Now().UTC()
	plan := reconcile.Plan[T]{
		Table:     c.desc.Table,
		KeyColumn: c.desc.KeyColumn,
		Key:       func(r T) string { return r.Key() },
		Project: func(r T) ports.Row {
			return ports.Row{
				Key:        r.Key(),
				Columns:    r.Columns(),
				Payload:    r.Payload(),
				ProjectID:  opts.ProjectID,
				SourceFile: opts.SourceFile,
				SyncedAt:   syncedAt,
			}
		},
		Policy:        c.desc.Policy,
		InsertChunk:   c.desc.InsertChunk,
		UpdateChunk:   c.desc.UpdateChunk,
		Parallelism:   opts.Parallelism,
		UpdateColumns: c.desc.UpdateColumns,
		ProgressEvery: opts.ProgressEvery,
	}
	return reconcile.Upsert(ctx, store, plan, records)
}

// Run extracts then upserts.
func (c *Connector[T]) Run(ctx context.Context, ws ports.Worksheet, store ports.RecordStore, opts Options) (Report, error) {
	records, err := c.Extract(ctx, ws)
	if err != nil {
		return Report{}, err
	}
	res, err := c.Upsert(ctx, store, records, opts)
	return Report{Processed: len(records), Result: res}, err
}
