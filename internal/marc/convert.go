// Package marc groups catalog spreadsheet rows into bibliographic records
// and writes them as MARC line-format (.mrk) text.
//
// A conversion runs in three sequential passes over a materialized sheet:
// rows are folded into groups by an Accumulator, each group is
// deduplicated, and a Serializer renders the groups in first-seen order.
// All state lives in the run; nothing is shared between conversions.
package marc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ErrNoDataRows is returned when a sheet has no rows below its header.
var ErrNoDataRows = errors.New("no data rows in sheet")

// Stats summarises one conversion run.
type Stats struct {
	Rows            int `json:"rows"`
	EmptyRows       int `json:"empty_rows"`
	Records         int `json:"records"`
	HoldingsItems   int `json:"holdings_items"`
	ParseAnomalies  int `json:"parse_anomalies"`
	MalformedPairs  int `json:"malformed_pairs"`
	HoldingsRereads int `json:"holdings_rereads"`
}

// Options configures a conversion.
type Options struct {
	// Language is written to 008 for records without a 041 $a.
	// Defaults to DefaultLanguage.
	Language string

	// Keys overrides the grouping key fields. Zero value uses
	// DefaultKeyBuilder.
	Keys *KeyBuilder

	// Now stamps the 008 field. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Result holds the deduplicated groups of a run, ready to be written.
type Result struct {
	Groups []*Group
	Stats  Stats

	serializer *Serializer
}

// Convert groups every data row of src. It fails only when the sheet has
// no data rows; per-value problems are logged and counted in Stats.
func Convert(src Source, opts Options) (*Result, error) {
	rows := src.Rows()
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	log := orDiscard(opts.Logger)
	keys := DefaultKeyBuilder()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	res := &Result{}
	f := &formatter{log: log, stats: &res.Stats}

	cells, _ := src.(CellReader)
	acc := newAccumulator(src.Header(), keys, cells, f)
	for i, row := range rows {
		acc.Add(row, i, i == len(rows)-1)
	}
	res.Groups = acc.Groups()
	res.serializer = newSerializer(opts.Language, now(), log, &res.Stats)

	log.Info("rows grouped",
		"rows", res.Stats.Rows,
		"empty_rows", res.Stats.EmptyRows,
		"groups", len(res.Groups),
		"holdings_columns", string(acc.HoldingsColumns()),
		"parse_anomalies", res.Stats.ParseAnomalies,
	)
	return res, nil
}

// WriteTo renders every record to w. A Result can be written once.
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	if r.serializer == nil {
		return 0, errors.New("result already written")
	}
	cw := &countingWriter{w: w}
	err := r.serializer.Encode(cw, r.Groups)
	r.serializer = nil
	return cw.n, err
}

// Bytes renders the whole output into memory. On error nothing is
// returned.
func (r *Result) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render records: %w", err)
	}
	return buf.Bytes(), nil
}

// Table is an in-memory Source.
type Table struct {
	HeaderRow []any
	DataRows  [][]any
}

func (t *Table) Header() []any { return t.HeaderRow }
func (t *Table) Rows() [][]any { return t.DataRows }

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log != nil {
		return log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
