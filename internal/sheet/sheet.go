// Package sheet reads the active worksheet of an .xlsx workbook into memory
// and writes header-only template workbooks.
//
// Cell values are decoded into the types the marc package understands:
// date-formatted numeric cells and ISO 8601 date cells become time.Time,
// time-only formats become "15:04:05" text, and everything else is returned
// as the raw cell text.
package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

type cellKind int

const (
	plainCell cellKind = iota
	dateCell
	timeCell
)

// Workbook is the active sheet of an opened workbook with every row
// materialized. It also serves single-cell reads by coordinates.
type Workbook struct {
	f        *excelize.File
	name     string
	date1904 bool
	kinds    map[int]cellKind

	header []any
	rows   [][]any
}

// Open reads the workbook in r and materializes its active sheet. The
// caller must Close the returned Workbook.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	w := &Workbook{
		f:     f,
		name:  f.GetSheetName(f.GetActiveSheetIndex()),
		kinds: make(map[int]cellKind),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		w.date1904 = *props.Date1904
	}

	raw, err := f.GetRows(w.name, excelize.Options{RawCellValue: true})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", w.name, err)
	}

	for ri, cells := range raw {
		row := make([]any, len(cells))
		for ci, v := range cells {
			row[ci], err = w.decode(ri+1, ci+1, v)
			if err != nil {
				f.Close()
				return nil, err
			}
		}
		if ri == 0 {
			w.header = row
			continue
		}
		w.rows = append(w.rows, row)
	}
	return w, nil
}

// SheetName returns the name of the active sheet.
func (w *Workbook) SheetName() string { return w.name }

// Header returns the first row of the sheet.
func (w *Workbook) Header() []any { return w.header }

// Rows returns every row below the header, including blank ones.
func (w *Workbook) Rows() [][]any { return w.rows }

// CellAt reads one cell straight from the sheet. row and col are 1-based.
func (w *Workbook) CellAt(row, col int) (any, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	v, err := w.f.GetCellValue(w.name, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read cell %s: %w", cell, err)
	}
	return w.decode(row, col, v)
}

// Close releases the underlying workbook.
func (w *Workbook) Close() error {
	return w.f.Close()
}

func (w *Workbook) decode(row, col int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return w.decodeText(row, col, raw)
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	styleID, err := w.f.GetCellStyle(w.name, cell)
	if err != nil {
		return nil, fmt.Errorf("read style of %s: %w", cell, err)
	}

	switch w.kindOf(styleID) {
	case dateCell:
		t, err := excelize.ExcelDateToTime(serial, w.date1904)
		if err != nil {
			return raw, nil
		}
		return t, nil
	case timeCell:
		t, err := excelize.ExcelDateToTime(serial, w.date1904)
		if err != nil {
			return raw, nil
		}
		return t.Format(time.TimeOnly), nil
	default:
		return raw, nil
	}
}

// isoLayouts are the forms an ISO 8601 typed cell (t="d") is stored in.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// decodeText returns ISO 8601 date cells as time.Time and any other text
// unchanged.
func (w *Workbook) decodeText(row, col int, raw string) (any, error) {
	t, ok := parseISODate(raw)
	if !ok {
		return raw, nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := w.f.GetCellType(w.name, cell)
	if err != nil {
		return nil, fmt.Errorf("read type of %s: %w", cell, err)
	}
	if typ != excelize.CellTypeDate {
		return raw, nil
	}
	return t, nil
}

func parseISODate(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (w *Workbook) kindOf(styleID int) cellKind {
	if k, ok := w.kinds[styleID]; ok {
		return k
	}
	k := plainCell
	if style, err := w.f.GetStyle(styleID); err == nil && style != nil {
		if style.CustomNumFmt != nil {
			k = classifyFormat(*style.CustomNumFmt)
		} else {
			k = builtinKind(style.NumFmt)
		}
	}
	w.kinds[styleID] = k
	return k
}

// builtinKind classifies the built-in number format ids.
func builtinKind(id int) cellKind {
	switch {
	case id >= 14 && id <= 17, id == 22, id >= 27 && id <= 36, id >= 50 && id <= 58:
		return dateCell
	case id >= 18 && id <= 21, id >= 45 && id <= 47:
		return timeCell
	default:
		return plainCell
	}
}

// classifyFormat inspects a custom format code with literals removed.
func classifyFormat(code string) cellKind {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case inQuote:
			inQuote = c != '"'
		case inBracket:
			inBracket = c != ']'
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\':
			i++
		default:
			b.WriteByte(c)
		}
	}
	stripped := strings.ToLower(b.String())

	switch {
	case strings.ContainsAny(stripped, "yd"):
		return dateCell
	case strings.ContainsAny(stripped, "hs"):
		return timeCell
	case strings.Contains(stripped, "m"):
		return dateCell
	default:
		return plainCell
	}
}

// Template returns an .xlsx workbook whose first row holds headers.
func Template(sheetName string, headers []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &row); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
