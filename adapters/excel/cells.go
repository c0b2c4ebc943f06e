package excel

import (
	"strconv"
	"strings"
	"time"

	"datahub/domain/sheet"

	"github.com/xuri/excelize/v2"
)

// cell types one populated cell. text is the raw value GetRows returned for it.
func (s *Worksheet) cell(col, row int, text string) (sheet.RawValue, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	f := s.book.file

	v, err := s.scalar(ref, text)
	if err != nil {
		return nil, err
	}
	if expr, err := f.GetCellFormula(s.name, ref); err == nil && expr != "" {
		return sheet.Formula{Expr: expr, Result: v}, nil
	}
	if p, ok := v.(sheet.Primitive); ok {
		if str, isText := p.V.(string); isText {
			if linked, target, err := f.GetCellHyperLink(s.name, ref); err == nil && linked {
				return sheet.Hyperlink{Text: str, Target: target}, nil
			}
		}
	}
	return v, nil
}

func (s *Worksheet) scalar(ref, text string) (sheet.RawValue, error) {
	if text == "" {
		return sheet.Null{}, nil
	}
	f := s.book.file
	typ, err := f.GetCellType(s.name, ref)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return sheet.Primitive{V: text == "1" || strings.EqualFold(text, "true")}, nil
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		runs, err := f.GetCellRichText(s.name, ref)
		if err == nil && len(runs) > 1 {
			parts := make([]string, len(runs))
			for i, r := range runs {
				parts[i] = r.Text
			}
			return sheet.RichText{Runs: parts}, nil
		}
		return sheet.Primitive{V: text}, nil
	case excelize.CellTypeDate:
		t, err := time.Parse(time.RFC3339Nano, text)
		return sheet.Date{T: t, Valid: err == nil}, nil
	case excelize.CellTypeFormula, excelize.CellTypeError:
		return sheet.Primitive{V: text}, nil
	}

	num, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return sheet.Primitive{V: text}, nil
	}
	if s.book.isDateStyle(s.name, ref) {
		t, err := excelize.ExcelDateToTime(num, s.book.date1904)
		return sheet.Date{T: t, Valid: err == nil}, nil
	}
	return sheet.Primitive{V: num}, nil
}

// isDateStyle reports whether the cell's number format renders a date or time.
func (w *Workbook) isDateStyle(sheetName, ref string) bool {
	idx, err := w.file.GetCellStyle(sheetName, ref)
	if err != nil || idx == 0 {
		return false
	}

	w.mu.Lock()
	if w.dateStyles == nil {
		w.dateStyles = make(map[int]bool)
	}
	known, ok := w.dateStyles[idx]
	w.mu.Unlock()
	if ok {
		return known
	}

	isDate := false
	if style, err := w.file.GetStyle(idx); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	w.mu.Lock()
	w.dateStyles[idx] = isDate
	w.mu.Unlock()
	return isDate
}

func isDateFormat(id int, custom *string) bool {
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47,
		id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	if custom == nil {
		return false
	}
	return isDateCode(*custom)
}

// isDateCode inspects a custom format code outside quoted literals and
// bracketed sections for date or time tokens.
func isDateCode(code string) bool {
	code = strings.ToLower(code)
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[':
			inBracket = true
		case c == ']':
			inBracket = false
		case inBracket:
		case c == 'y', c == 'm', c == 'd', c == 'h', c == 's':
			return true
		}
	}
	return false
}
