package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
)

// WriteCSV writes the table to path as CSV. The header row is the timestamp
// column followed by the value columns; timestamps are epoch milliseconds so
// the file round-trips without timezone or formatting loss. The file is
// written atomically via a temp file in the same directory.
func (t *Table) WriteCSV(path string) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("refusing to write invalid table: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".futuresdata-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := t.writeCSVTo(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving table into place: %w", err)
	}
	return nil
}

func (t *Table) writeCSVTo(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{TimestampColumn}, t.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range t.Rows {
		record[0] = strconv.FormatInt(row.Timestamp.UnixMilli(), 10)
		copy(record[1:], row.Cells)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table previously produced by WriteCSV. A file whose
// header lacks the timestamp column, whose timestamps do not parse as epoch
// milliseconds, or whose rows are ragged is a Format error.
func ReadCSV(path string) (*Table, error) {
	const op = "table.ReadCSV"

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Format(op, err, "opening %s", path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1 // raggedness is reported with row context below

	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperrors.Format(op, err, "parsing %s", path)
	}
	if len(records) == 0 {
		return nil, apperrors.Format(op, nil, "%s is empty", path)
	}

	header := records[0]
	if len(header) < 2 || header[0] != TimestampColumn {
		return nil, apperrors.Format(op, nil,
			"%s: first header column must be %q followed by at least one value column", path, TimestampColumn)
	}

	t := &Table{
		Columns: append([]string(nil), header[1:]...),
		Rows:    make([]Row, 0, len(records)-1),
	}
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, apperrors.Format(op, nil,
				"%s: row %d has %d fields, want %d", path, i+1, len(record), len(header))
		}
		millis, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, apperrors.Format(op, err,
				"%s: row %d timestamp %q is not epoch milliseconds", path, i+1, record[0])
		}
		t.Rows = append(t.Rows, Row{
			Timestamp: time.UnixMilli(millis).UTC(),
			Cells:     append([]string(nil), record[1:]...),
		})
	}

	if err := t.Validate(); err != nil {
		return nil, apperrors.Format(op, err, "%s", path)
	}
	return t, nil
}
