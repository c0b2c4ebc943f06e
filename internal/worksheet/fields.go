package worksheet

import (
	"math"
	"strconv"
	"strings"
	"time"

	"datahub/domain/sheet"
)

// Typed coercions from canonical scalars. Every helper maps blank or
// unparseable input to nil so the destination column stores NULL.

func text(v any) *string {
	s := sheet.Text(v)
	if s == "" {
		return nil
	}
	return &s
}

func decimal(v any) *float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case string:
		s := numberText(n)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// numberText strips thousands separators and turns a lone decimal comma
// into a point: "1,234.5" and "1,234" are thousands, "28,5" is a decimal.
func numberText(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	commas := strings.Count(s, ",")
	switch {
	case commas == 0:
		return s
	case strings.Contains(s, "."), commas > 1:
		return strings.ReplaceAll(s, ",", "")
	}
	i := strings.IndexByte(s, ',')
	whole, frac := strings.TrimLeft(s[:i], "+-"), s[i+1:]
	if len(frac) == 3 && whole != "" && whole != "0" {
		return s[:i] + frac
	}
	return s[:i] + "." + frac
}

// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
func integer(v any) *int64 {
	f := decimal(v)
	if f == nil || *f >= math.MaxInt64 || *f < math.MinInt64 {
		return nil
	}
	n := int64(*f)
	return &n
}

var timeLayouts = []string{
	time.RFC3339Nano,
	sheet.ISOLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02/01/2006",
	"02/01/2006 15:04",
	"2 Jan 2006",
	"02-Jan-2006",
}

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func timestamp(v any) *time.Time {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
		return nil
	case float64:
		// serial numbers that lost their date format on the way out of Excel
		if t < 1 || t > 2958465 {
			return nil
		}
		days := math.Floor(t)
		frac := t - days
		parsed := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(frac * float64(24*time.Hour))).Round(time.Second)
		return &parsed
	default:
		return nil
	}
}

func boolean(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "x", "✓", "✔", "done", "ok":
			b = true
		case "false", "no", "n", "0", "":
			if strings.TrimSpace(t) == "" {
				return nil
			}
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

// val unwraps a nullable field into a driver-friendly value.
func val[V any](p *V) any {
	if p == nil {
		return nil
	}
	return *p
}
