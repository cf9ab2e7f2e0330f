package chart

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
	"github.com/menglong24/Binance-Data-Analysis/internal/table"
)

func ts(hour int) time.Time {
	return time.Date(2026, 8, 20, hour, 0, 0, 0, time.UTC)
}

func sampleTable() *table.Table {
	return &table.Table{
		Columns: []string{
			"open", "high", "low", "close", "volume",
			"funding_rate",
			"basis", "basis_rate",
		},
		Rows: []table.Row{
			{Timestamp: ts(0), Cells: []string{"100", "110", "90", "105", "1000", "0.0001", "12.5", "0.0001"}},
			{Timestamp: ts(1), Cells: []string{"105", "115", "95", "110", "1100", "", "13.1", "0.00011"}},
			{Timestamp: ts(2), Cells: []string{"110", "120", "100", "115", "1200", "", "", ""}},
		},
	}
}

func TestRender(t *testing.T) {
	t.Run("writes one chart per metric present", func(t *testing.T) {
		dir := t.TempDir()
		written, err := NewRenderer(dir, nil).Render(sampleTable(), "BTCUSDT", nil)
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{
			filepath.Join(dir, "funding_rate.html"),
			filepath.Join(dir, "basis.html"),
		}, written)

		for _, path := range written {
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		}
	})

	t.Run("chart html references both axes", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewRenderer(dir, nil).Render(sampleTable(), "BTCUSDT", nil)
		require.NoError(t, err)

		html, err := os.ReadFile(filepath.Join(dir, "basis.html"))
		require.NoError(t, err)
		assert.Contains(t, string(html), "basis_rate")
		assert.Contains(t, string(html), "close")
	})

	t.Run("creates the output directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "charts")
		_, err := NewRenderer(dir, nil).Render(sampleTable(), "BTCUSDT", nil)
		require.NoError(t, err)
	})
}

func TestRenderMetricSelection(t *testing.T) {
	t.Run("a single requested metric yields exactly one chart", func(t *testing.T) {
		dir := t.TempDir()
		written, err := NewRenderer(dir, nil).Render(sampleTable(), "BTCUSDT", []string{"basis"})
		require.NoError(t, err)

		assert.Equal(t, []string{filepath.Join(dir, "basis.html")}, written)
		_, err = os.Stat(filepath.Join(dir, "funding_rate.html"))
		assert.True(t, os.IsNotExist(err), "unrequested metrics must not be charted")
	})

	t.Run("requested metrics keep their order", func(t *testing.T) {
		dir := t.TempDir()
		written, err := NewRenderer(dir, nil).Render(sampleTable(), "BTCUSDT", []string{"basis", "funding_rate"})
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "basis.html"),
			filepath.Join(dir, "funding_rate.html"),
		}, written)
	})

	t.Run("unknown metric name", func(t *testing.T) {
		_, err := NewRenderer(t.TempDir(), nil).Render(sampleTable(), "BTCUSDT", []string{"liquidations"})
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})

	t.Run("metric absent from the table", func(t *testing.T) {
		_, err := NewRenderer(t.TempDir(), nil).Render(sampleTable(), "BTCUSDT", []string{"open_interest"})
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})

	t.Run("price metric is rejected", func(t *testing.T) {
		_, err := NewRenderer(t.TempDir(), nil).Render(sampleTable(), "BTCUSDT", []string{"ohlcv"})
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})
}

func TestRenderFormatErrors(t *testing.T) {
	t.Run("table without close column", func(t *testing.T) {
		tbl := &table.Table{
			Columns: []string{"funding_rate"},
			Rows: []table.Row{
				{Timestamp: ts(0), Cells: []string{"0.0001"}},
			},
		}
		_, err := NewRenderer(t.TempDir(), nil).Render(tbl, "BTCUSDT", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})

	t.Run("table with no rows", func(t *testing.T) {
		tbl := &table.Table{Columns: []string{"open", "high", "low", "close", "volume"}}
		_, err := NewRenderer(t.TempDir(), nil).Render(tbl, "BTCUSDT", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})

	t.Run("price-only table has nothing to plot", func(t *testing.T) {
		tbl := &table.Table{
			Columns: []string{"open", "high", "low", "close", "volume"},
			Rows: []table.Row{
				{Timestamp: ts(0), Cells: []string{"100", "110", "90", "105", "1000"}},
			},
		}
		_, err := NewRenderer(t.TempDir(), nil).Render(tbl, "BTCUSDT", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})

	t.Run("non-numeric metric cell", func(t *testing.T) {
		tbl := &table.Table{
			Columns: []string{"open", "high", "low", "close", "volume", "funding_rate"},
			Rows: []table.Row{
				{Timestamp: ts(0), Cells: []string{"100", "110", "90", "105", "1000", "n/a"}},
			},
		}
		_, err := NewRenderer(t.TempDir(), nil).Render(tbl, "BTCUSDT", nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindFormat))
	})
}
