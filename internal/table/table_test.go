package table

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
)

func ts(hour int) time.Time {
	return time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
}

func sampleTable() *Table {
	return &Table{
		Columns: []string{"close", "funding_rate"},
		Rows: []Row{
			{Timestamp: ts(0), Cells: []string{"114804.80", "0.00010000"}},
			{Timestamp: ts(1), Cells: []string{"115050.30", MissingMarker}},
			{Timestamp: ts(8), Cells: []string{MissingMarker, "-0.00005210"}},
		},
	}
}

func TestTableValidate(t *testing.T) {
	assert.NoError(t, sampleTable().Validate())

	t.Run("no columns", func(t *testing.T) {
		bad := &Table{}
		assert.Error(t, bad.Validate())
	})

	t.Run("ragged row", func(t *testing.T) {
		bad := sampleTable()
		bad.Rows[1].Cells = bad.Rows[1].Cells[:1]
		assert.Error(t, bad.Validate())
	})

	t.Run("non-increasing timestamps", func(t *testing.T) {
		bad := sampleTable()
		bad.Rows[2].Timestamp = bad.Rows[0].Timestamp
		assert.Error(t, bad.Validate())
	})
}

func TestTableColumn(t *testing.T) {
	tbl := sampleTable()

	closeCol, ok := tbl.Column("close")
	require.True(t, ok)
	assert.Equal(t, []string{"114804.80", "115050.30", MissingMarker}, closeCol)

	_, ok = tbl.Column("open_interest")
	assert.False(t, ok)

	assert.Equal(t, 1, tbl.ColumnIndex("funding_rate"))
	assert.Equal(t, -1, tbl.ColumnIndex("basis"))
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTCUSDT_1h.csv")
	original := sampleTable()

	require.NoError(t, original.WriteCSV(path))

	restored, err := ReadCSV(path)
	require.NoError(t, err)

	assert.Equal(t, original.Columns, restored.Columns)
	require.Len(t, restored.Rows, len(original.Rows))
	for i := range original.Rows {
		assert.True(t, original.Rows[i].Timestamp.Equal(restored.Rows[i].Timestamp), "row %d timestamp", i)
		assert.Equal(t, original.Rows[i].Cells, restored.Rows[i].Cells, "row %d cells must survive byte for byte", i)
	}
}

func TestWriteCSVIdempotent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")

	require.NoError(t, sampleTable().WriteCSV(first))
	require.NoError(t, sampleTable().WriteCSV(second))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical tables must serialize to identical bytes")
}

func TestWriteCSVRejectsInvalidTable(t *testing.T) {
	bad := sampleTable()
	bad.Rows[0].Cells = nil
	err := bad.WriteCSV(filepath.Join(t.TempDir(), "bad.csv"))
	assert.Error(t, err)
}

func TestReadCSVFormatErrors(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "in.csv")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name    string
		content string
	}{
		{"missing file", ""},
		{"empty file", "\n"},
		{"wrong first header", "time,close\n1755648000000,114804.80\n"},
		{"no value columns", "timestamp\n1755648000000\n"},
		{"non-integer timestamp", "timestamp,close\n2026-08-20T00:00:00Z,114804.80\n"},
		{"ragged row", "timestamp,close,funding_rate\n1755648000000,114804.80\n"},
		{"duplicate timestamps", "timestamp,close\n1755648000000,1\n1755648000000,2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.csv")
			if tt.name != "missing file" {
				path = write(t, tt.content)
			}
			_, err := ReadCSV(path)
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindFormat), "want format error, got %v", err)
		})
	}
}
