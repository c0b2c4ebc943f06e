package sheet

import (
	"fmt"
	"regexp"
	"strings"
)

var nonIdentifierRun = regexp.MustCompile(`[^a-z0-9]+`)

// HeaderMap maps a 1-based column position to its normalized key.
// Columns whose header normalizes to "" have no entry.
type HeaderMap map[int]string

// NormalizeHeader turns a header caption into a snake_case identifier.
func NormalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonIdentifierRun.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// NormalizeHeaders builds the header map for a header row.
func NormalizeHeaders(row Row) HeaderMap {
	headers := make(HeaderMap, len(row.Cells))
	for _, cell := range row.Cells {
		v := Normalize(cell.Value)
		if v == nil {
			continue
		}
		key := NormalizeHeader(fmt.Sprint(v))
		if key == "" {
			continue
		}
		headers[cell.Col] = key
	}
	return headers
}

// Keys returns the header keys in column order.
func (h HeaderMap) Keys() []string {
	maxCol := 0
	for col := range h {
		if col > maxCol {
			maxCol = col
		}
	}
	keys := make([]string, 0, len(h))
	for col := 1; col <= maxCol; col++ {
		if key, ok := h[col]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
