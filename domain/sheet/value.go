package sheet

import (
	"fmt"
	"strings"
	"time"
)

// ISOLayout is the canonical date rendering stored in records and payloads.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// RawValue is a cell value as read from a workbook, before normalization.
// The set of variants is closed; adapters construct one of the types below.
type RawValue interface {
	rawValue()
}

// Null is an empty cell.
type Null struct{}

// Primitive wraps a string, number or boolean.
type Primitive struct {
	V any
}

// Date is a date cell. Valid is false when the stored serial could not be
// represented as a calendar date.
type Date struct {
	T     time.Time
	Valid bool
}

// Formula carries the cached result of a formula cell. Result may itself be a Formula.
type Formula struct {
	Expr   string
	Result RawValue
}

// RichText is a cell made of formatted runs.
type RichText struct {
	Runs []string
}

// Hyperlink is a cell whose display text points at Target.
type Hyperlink struct {
	Text   string
	Target string
}

// Opaque is any shape the adapter did not recognise.
type Opaque struct {
	V any
}

func (Null) rawValue()      {}
func (Primitive) rawValue() {}
func (Date) rawValue()      {}
func (Formula) rawValue()   {}
func (RichText) rawValue()  {}
func (Hyperlink) rawValue() {}
func (Opaque) rawValue()    {}

// Normalize reduces a raw cell value to a canonical scalar: nil, string,
// float64, bool, or an ISO-8601 date string.
func Normalize(v RawValue) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Formula:
		return Normalize(val.Result)
	case Date:
		if !val.Valid || val.T.IsZero() {
			return nil
		}
		return val.T.UTC().Format(ISOLayout)
	case RichText:
		return strings.Join(val.Runs, "")
	case Hyperlink:
		return val.Text
	case Primitive:
		return scalar(val.V)
	case Opaque:
		if val.V == nil {
			return nil
		}
		return fmt.Sprint(val.V)
	default:
		return fmt.Sprint(v)
	}
}

// scalar widens numeric kinds to float64 so payloads survive a JSON round trip unchanged.
func scalar(v any) any {
	switch n := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case time.Time:
		return Normalize(Date{T: n, Valid: true})
	default:
		return fmt.Sprint(n)
	}
}

// IsBlank reports whether a normalized value carries no data.
func IsBlank(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	default:
		return false
	}
}
