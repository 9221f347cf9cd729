package marc

import (
	"log/slog"
)

// Source is a fully materialized sheet: one header row and the data rows
// below it. Cell values are strings, numbers, time.Time or nil.
type Source interface {
	Header() []any
	Rows() [][]any
}

// CellReader is implemented by sources that can read a single cell by its
// 1-based sheet coordinates, bypassing the materialized rows.
type CellReader interface {
	CellAt(row, col int) (any, error)
}

// HoldingsPair is one subfield of a holdings item.
type HoldingsPair struct {
	Code  byte
	Value string
}

// HoldingsItem is the holdings data contributed by one source row.
type HoldingsItem []HoldingsPair

// Group is one output record under construction.
type Group struct {
	Key      string
	Bib      Bibliographic
	Holdings []HoldingsItem

	// Rows counts the source rows merged into the group.
	Rows int
}

type holdingsCol struct {
	index int
	code  byte
}

// Accumulator folds rows into groups keyed by KeyBuilder. It is owned by a
// single conversion run and is not safe for concurrent use.
type Accumulator struct {
	keys     KeyBuilder
	columns  map[string]int
	holdings []holdingsCol
	cells    CellReader
	fmt      *formatter

	groups map[string]*Group
	order  []*Group
	done   bool
}

// NewAccumulator prepares an accumulator for a sheet with the given header
// row. cells may be nil.
func NewAccumulator(header []any, keys KeyBuilder, cells CellReader, log *slog.Logger) *Accumulator {
	return newAccumulator(header, keys, cells, &formatter{log: orDiscard(log), stats: &Stats{}})
}

func newAccumulator(header []any, keys KeyBuilder, cells CellReader, f *formatter) *Accumulator {
	known := make(map[string]bool)
	for _, field := range SupportedFields() {
		known[field] = true
	}
	for _, field := range keys.fields {
		known[field] = true
	}

	a := &Accumulator{
		keys:    keys,
		columns: make(map[string]int),
		cells:   cells,
		fmt:     f,
		groups:  make(map[string]*Group),
	}
	for i, h := range header {
		name, _ := FormatValue(h)
		name = CleanText(name)
		if name == "" {
			continue
		}
		if code, ok := IsHoldingsColumn(name); ok {
			a.holdings = append(a.holdings, holdingsCol{index: i, code: code})
			continue
		}
		if known[name] {
			a.columns[name] = i
		}
	}
	f.log.Debug("header analysed",
		"columns", len(a.columns),
		"holdings_columns", len(a.holdings),
	)
	return a
}

// HoldingsColumns returns the holdings subfield codes detected in the
// header, in column order.
func (a *Accumulator) HoldingsColumns() []byte {
	codes := make([]byte, len(a.holdings))
	for i, h := range a.holdings {
		codes[i] = h.code
	}
	return codes
}

// Add merges one data row. index is the 0-based position of the row among
// the data rows and last marks the final physical row of the sheet.
func (a *Accumulator) Add(row []any, index int, last bool) {
	a.fmt.stats.Rows++
	if IsRowEmpty(row) {
		a.fmt.stats.EmptyRows++
		return
	}

	values := make(map[string]string, len(a.columns))
	for field, col := range a.columns {
		values[field] = a.fmt.format(cellAt(row, col))
	}

	pairs := a.holdingsPairs(row)
	if len(pairs) == 0 && last {
		pairs = a.rereadHoldings(index)
	}

	key := a.keys.Key(values, index+1)
	g, ok := a.groups[key]
	if !ok {
		g = &Group{Key: key}
		a.groups[key] = g
		a.order = append(a.order, g)
	}
	g.Rows++
	mergeRow(&g.Bib, values)
	if len(pairs) > 0 {
		g.Holdings = append(g.Holdings, pairs)
	}
}

// Groups deduplicates every group and returns them in first-seen order.
// Further calls to Add after Groups are not supported.
func (a *Accumulator) Groups() []*Group {
	if !a.done {
		for _, g := range a.order {
			dedupe(&g.Bib)
		}
		a.done = true
	}
	return a.order
}

func (a *Accumulator) holdingsPairs(row []any) HoldingsItem {
	var pairs HoldingsItem
	for _, h := range a.holdings {
		if v := a.fmt.format(cellAt(row, h.index)); v != "" {
			pairs = append(pairs, HoldingsPair{Code: h.code, Value: v})
		}
	}
	return pairs
}

// rereadHoldings fetches the holdings cells of a data row straight from the
// sheet. Guards against readers that hand back blank values for the final
// row.
func (a *Accumulator) rereadHoldings(index int) HoldingsItem {
	if a.cells == nil || len(a.holdings) == 0 {
		return nil
	}
	a.fmt.stats.HoldingsRereads++

	var pairs HoldingsItem
	for _, h := range a.holdings {
		raw, err := a.cells.CellAt(index+2, h.index+1)
		if err != nil {
			a.fmt.log.Warn("holdings re-read failed",
				"row", index+2,
				"col", h.index+1,
				"error", err,
			)
			continue
		}
		if v := a.fmt.format(raw); v != "" {
			pairs = append(pairs, HoldingsPair{Code: h.code, Value: v})
		}
	}
	if len(pairs) > 0 {
		a.fmt.log.Warn("holdings recovered by re-reading last row", "row", index+2, "pairs", len(pairs))
	}
	return pairs
}

// mergeRow applies one row's formatted values to a record.
func mergeRow(b *Bibliographic, values map[string]string) {
	for _, t := range schema {
		switch t.kind {
		case scalarField:
			for _, s := range t.subfields {
				firstNonEmpty(s.ref(b), values[t.field(s.code)])
			}

		case listField:
			list := t.list(b)
			for _, tok := range splitTokens(values[t.field('a')]) {
				if tok != "" {
					*list = append(*list, tok)
				}
			}

		case qualifiedField:
			qualifier := values[t.field(t.secondary)]
			entries := t.entries(b)
			for i, tok := range splitTokens(values[t.field(t.primary)]) {
				if tok == "" {
					continue
				}
				e := Entry{Primary: tok}
				if i == 0 {
					e.Secondary = qualifier
				}
				*entries = append(*entries, e)
			}

		case pairedField:
			secondary := splitTokens(values[t.field(t.secondary)])
			entries := t.entries(b)
			for i, tok := range splitTokens(values[t.field(t.primary)]) {
				if tok == "" {
					continue
				}
				e := Entry{Primary: tok}
				if i < len(secondary) {
					e.Secondary = secondary[i]
				}
				*entries = append(*entries, e)
			}
		}
	}
}

// firstNonEmpty stores v in dst unless dst already holds a value.
func firstNonEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func cellAt(row []any, col int) any {
	if col < len(row) {
		return row[col]
	}
	return nil
}

// formatter formats cell values for one run, logging and counting parse
// anomalies.
type formatter struct {
	log   *slog.Logger
	stats *Stats
}

func (f *formatter) format(v any) string {
	s, err := FormatValue(v)
	if err != nil {
		f.stats.ParseAnomalies++
		f.log.Warn("date-like value kept as text", "value", s, "error", err)
	}
	return s
}
