package ports

import (
	"context"

	"datahub/domain/sheet"
)

// WorkbookSource fetches and parses a workbook from a document locator
// (a sharing URL, or a local path for file sources).
type WorkbookSource interface {
	Fetch(ctx context.Context, locator string) (Workbook, error)
}

// Workbook is a parsed workbook. Close releases any parser resources.
type Workbook interface {
	SheetNames() []string
	Worksheet(name string) (Worksheet, bool)
	// Locator is the reference the workbook was fetched from.
	Locator() string
	// Size is the downloaded size in bytes, or 0 when unknown.
	Size() int64
	Close() error
}

// Worksheet exposes rows with their populated cells.
type Worksheet interface {
	Name() string
	RowCount() int
	ColumnCount() int
	// Row returns row n (1-based). Missing rows come back with no cells.
	Row(n int) (sheet.Row, error)
	// Rows returns every row that has at least one populated cell, in order.
	Rows() ([]sheet.Row, error)
}
