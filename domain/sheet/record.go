package sheet

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Cell is a populated cell at a 1-based column position.
type Cell struct {
	Col   int
	Value RawValue
}

// Row is one worksheet row with its populated cells.
type Row struct {
	Number int
	Cells  []Cell
}

// Record is one extracted worksheet row keyed by normalized header.
type Record map[string]any

// ExtractRow builds a record from a data row. It returns false for rows with
// no meaningful value, and for rows missing requiredKey when one is given.
func ExtractRow(row Row, headers HeaderMap, requiredKey string) (Record, bool) {
	rec := make(Record, len(row.Cells))
	hasData := false
	for _, cell := range row.Cells {
		key, ok := headers[cell.Col]
		if !ok {
			continue
		}
		v := Normalize(cell.Value)
		rec[key] = v
		if !IsBlank(v) {
			hasData = true
		}
	}
	if !hasData {
		return nil, false
	}
	if requiredKey != "" && IsBlank(rec[requiredKey]) {
		return nil, false
	}
	return rec, true
}

// Has reports whether key holds a non-blank value.
func (r Record) Has(key string) bool {
	return !IsBlank(r[key])
}

// String renders the value under key as trimmed text; blank values give "".
func (r Record) String(key string) string {
	return Text(r[key])
}

// First returns the first non-blank value among keys, or nil.
func (r Record) First(keys ...string) any {
	for _, k := range keys {
		if r.Has(k) {
			return r[k]
		}
	}
	return nil
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Value implements driver.Valuer; the record is stored as JSON.
func (r Record) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *Record) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Record", src)
	}
	rec := Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	*r = rec
	return nil
}

// Text renders a canonical scalar as trimmed text.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
