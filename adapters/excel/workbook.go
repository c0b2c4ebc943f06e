package excel

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"datahub/domain/sheet"
	"datahub/internal/errors"
	"datahub/ports"

	"github.com/xuri/excelize/v2"
)

// Workbook is an xlsx workbook parsed in memory.
type Workbook struct {
	file     *excelize.File
	locator  string
	size     int64
	date1904 bool

	mu         sync.Mutex
	sheets     map[string]*Worksheet
	dateStyles map[int]bool
}

var _ ports.Workbook = (*Workbook)(nil)

// Open parses workbook bytes. size is reported back through Size; pass the
// number of bytes downloaded, or 0 if unknown.
func Open(r io.Reader, locator string, size int64) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to parse workbook %s", locator), err)
	}

	wb := &Workbook{
		file:    f,
		locator: locator,
		size:    size,
		sheets:  make(map[string]*Worksheet),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

// OpenBytes is Open over an in-memory buffer.
func OpenBytes(data []byte, locator string) (*Workbook, error) {
	return Open(bytes.NewReader(data), locator, int64(len(data)))
}

func (w *Workbook) SheetNames() []string { return w.file.GetSheetList() }
func (w *Workbook) Locator() string      { return w.locator }
func (w *Workbook) Size() int64          { return w.size }

// Worksheet returns the named sheet. Names match exactly.
func (w *Workbook) Worksheet(name string) (ports.Worksheet, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ws, ok := w.sheets[name]; ok {
		return ws, true
	}
	found := false
	for _, n := range w.file.GetSheetList() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	ws := &Worksheet{book: w, name: name}
	w.sheets[name] = ws
	return ws, true
}

func (w *Workbook) Close() error { return w.file.Close() }

// Worksheet reads cells lazily; raw row text is loaded once on first access.
type Worksheet struct {
	book *Workbook
	name string

	once    sync.Once
	loadErr error
	raw     [][]string
	cols    int
}

var _ ports.Worksheet = (*Worksheet)(nil)

func (s *Worksheet) Name() string { return s.name }

func (s *Worksheet) load() error {
	s.once.Do(func() {
		rows, err := s.book.file.GetRows(s.name, excelize.Options{RawCellValue: true})
		if err != nil {
			s.loadErr = errors.ConnectionError(fmt.Sprintf("failed to read worksheet %s", s.name), err)
			return
		}
		s.raw = rows
		for _, r := range rows {
			if len(r) > s.cols {
				s.cols = len(r)
			}
		}
	})
	return s.loadErr
}

func (s *Worksheet) RowCount() int {
	if s.load() != nil {
		return 0
	}
	return len(s.raw)
}

func (s *Worksheet) ColumnCount() int {
	if s.load() != nil {
		return 0
	}
	return s.cols
}

// Row returns row n (1-based) with one cell per populated column.
func (s *Worksheet) Row(n int) (sheet.Row, error) {
	if err := s.load(); err != nil {
		return sheet.Row{}, err
	}
	row := sheet.Row{Number: n}
	if n < 1 || n > len(s.raw) {
		return row, nil
	}
	for i, text := range s.raw[n-1] {
		col := i + 1
		v, err := s.cell(col, n, text)
		if err != nil {
			return sheet.Row{}, err
		}
		if _, empty := v.(sheet.Null); empty {
			continue
		}
		row.Cells = append(row.Cells, sheet.Cell{Col: col, Value: v})
	}
	return row, nil
}

// Rows returns every row with at least one populated cell.
func (s *Worksheet) Rows() ([]sheet.Row, error) {
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]sheet.Row, 0, len(s.raw))
	for n := 1; n <= len(s.raw); n++ {
		row, err := s.Row(n)
		if err != nil {
			return nil, err
		}
		if len(row.Cells) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}
