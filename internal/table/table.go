// Package table holds the aligned tabular artifact produced by the fetch
// stage and consumed by the plot stage. A table has a shared timestamp axis
// in its first column and one column per metric value; cells hold the exact
// decimal strings the upstream returned, with an empty cell marking a
// timestamp at which a metric has no observation.
package table

import (
	"fmt"
	"time"
)

// MissingMarker is the cell content for a timestamp at which a metric has
// no observation. The empty string survives a CSV round trip unchanged and
// cannot collide with a decimal value.
const MissingMarker = ""

// TimestampColumn is the header name of the leading timestamp column.
const TimestampColumn = "timestamp"

// Row is one table row: a timestamp plus one cell per value column.
type Row struct {
	Timestamp time.Time
	Cells     []string
}

// Table is a timestamp-aligned grid of metric values. Columns names the
// value columns in order (the timestamp column is implicit and always
// first). Rows are ordered by strictly increasing timestamp.
type Table struct {
	Columns []string
	Rows    []Row
}

// Validate checks the table shape: at least one value column, every row
// carrying exactly one cell per column, and strictly increasing timestamps.
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no value columns")
	}
	for i, row := range t.Rows {
		if len(row.Cells) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row.Cells), len(t.Columns))
		}
		if i > 0 && !row.Timestamp.After(t.Rows[i-1].Timestamp) {
			return fmt.Errorf("row %d timestamp %s does not advance past row %d",
				i, row.Timestamp.Format(time.RFC3339), i-1)
		}
	}
	return nil
}

// ColumnIndex returns the index of the named value column, or -1 when the
// table has no such column.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all cells of the named value column in row order, or false
// when the column does not exist. Missing observations appear as
// MissingMarker cells.
func (t *Table) Column(name string) ([]string, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	cells := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		cells[i] = row.Cells[idx]
	}
	return cells, true
}

// Timestamps returns the shared timestamp axis in row order.
func (t *Table) Timestamps() []time.Time {
	out := make([]time.Time, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Timestamp
	}
	return out
}

// String returns a short human-readable description of the table.
func (t *Table) String() string {
	return fmt.Sprintf("Table{%d columns, %d rows}", len(t.Columns), len(t.Rows))
}
