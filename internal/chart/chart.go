// Package chart renders the plot-stage output: one HTML chart per metric,
// each overlaying the close price (left axis) with that metric's columns
// (right axis) on the table's shared timestamp axis. Gaps in a metric are
// left as breaks in the line rather than connected across.
package chart

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
	"github.com/menglong24/Binance-Data-Analysis/internal/models"
	"github.com/menglong24/Binance-Data-Analysis/internal/table"
)

const (
	chartWidth  = "1400px"
	chartHeight = "640px"

	closeColumn = "close"

	timeLabelLayout = "2006-01-02 15:04"
)

// Renderer writes metric charts into an output directory.
type Renderer struct {
	outputDir string
	logger    *slog.Logger
}

// NewRenderer creates a renderer that writes HTML files into outputDir. A
// nil logger falls back to slog.Default().
func NewRenderer(outputDir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		outputDir: outputDir,
		logger:    logger.With(slog.String("component", "chart_renderer")),
	}
}

// Render produces one HTML chart per selected metric and returns the
// written file paths. An empty metricNames slice selects every metric whose
// columns appear in the table, skipping the price metric itself; explicit
// names must name metrics the table actually contains. A table without a
// close column cannot anchor the price axis and is a Format error.
func (r *Renderer) Render(t *table.Table, title string, metricNames []string) ([]string, error) {
	const op = "chart.Render"

	if t.ColumnIndex(closeColumn) < 0 {
		return nil, apperrors.Format(op, nil, "table has no %q column to plot price against", closeColumn)
	}
	if len(t.Rows) == 0 {
		return nil, apperrors.Format(op, nil, "table has no rows")
	}

	kinds, err := selectKinds(t, metricNames)
	if err != nil {
		return nil, err
	}

	closeValues, err := columnValues(t, closeColumn)
	if err != nil {
		return nil, apperrors.Format(op, err, "close column")
	}

	labels := make([]string, len(t.Rows))
	for i, ts := range t.Timestamps() {
		labels[i] = ts.UTC().Format(timeLabelLayout)
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chart output directory: %w", err)
	}

	var written []string
	for _, kind := range kinds {
		path := filepath.Join(r.outputDir, fmt.Sprintf("%s.html", kind))
		if err := r.renderMetric(t, kind, title, labels, closeValues, path); err != nil {
			return nil, err
		}
		written = append(written, path)
		r.logger.Info("chart written", "metric", kind.String(), "path", path)
	}
	return written, nil
}

// selectKinds resolves the requested metric names against the table. Names
// must be known metric kinds with all their columns present; the empty list
// means every plottable metric in the table.
func selectKinds(t *table.Table, metricNames []string) ([]models.MetricKind, error) {
	const op = "chart.Render"

	if len(metricNames) == 0 {
		var kinds []models.MetricKind
		for _, kind := range models.AllMetricKinds() {
			if kind == models.MetricOHLCV || !tableHasKind(t, kind) {
				continue
			}
			kinds = append(kinds, kind)
		}
		if len(kinds) == 0 {
			return nil, apperrors.Format(op, nil, "table contains no plottable metric columns")
		}
		return kinds, nil
	}

	kinds := make([]models.MetricKind, 0, len(metricNames))
	seen := make(map[models.MetricKind]struct{}, len(metricNames))
	for _, name := range metricNames {
		kind, err := models.ParseMetricKind(name)
		if err != nil {
			return nil, apperrors.Format(op, err, "unknown metric %q", name)
		}
		if kind == models.MetricOHLCV {
			return nil, apperrors.Format(op, nil, "the price metric cannot be plotted against itself")
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		if !tableHasKind(t, kind) {
			return nil, apperrors.Format(op, nil, "table has no columns for metric %s", kind)
		}
		seen[kind] = struct{}{}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// renderMetric writes a single dual-axis chart: close price on the left
// axis, the metric's columns as additional series on the right axis.
func (r *Renderer) renderMetric(t *table.Table, kind models.MetricKind, title string, labels []string, closeValues []opts.LineData, path string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s %s", title, kind),
			Width:     chartWidth,
			Height:    chartHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s close price vs %s", title, strings.ReplaceAll(kind.String(), "_", " ")),
			Subtitle: fmt.Sprintf("%d timestamps, UTC", len(labels)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true, Top: "30"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "close price", Type: "value", Scale: true}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.ExtendYAxis(opts.YAxis{Name: kind.String(), Type: "value", Scale: true})

	line.SetXAxis(labels)
	line.AddSeries(closeColumn, closeValues)

	for _, col := range kind.Columns() {
		values, err := columnValues(t, col)
		if err != nil {
			return apperrors.Format("chart.renderMetric", err, "column %s", col)
		}
		line.AddSeries(col, values,
			charts.WithLineChartOpts(opts.LineChart{
				YAxisIndex:   1,
				ConnectNulls: false,
			}),
		)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := line.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("rendering chart %s: %w", path, err)
	}
	return f.Close()
}

// columnValues converts a table column to chart points. Missing cells map
// to nil values so the series breaks instead of drawing through the gap.
func columnValues(t *table.Table, name string) ([]opts.LineData, error) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("no column %q", name)
	}
	values := make([]opts.LineData, len(cells))
	for i, cell := range cells {
		if cell == table.MissingMarker {
			values[i] = opts.LineData{Value: nil}
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d value %q is not numeric: %w", i, cell, err)
		}
		values[i] = opts.LineData{Value: v}
	}
	return values, nil
}

// tableHasKind reports whether every column of the kind is present.
func tableHasKind(t *table.Table, kind models.MetricKind) bool {
	for _, col := range kind.Columns() {
		if t.ColumnIndex(col) < 0 {
			return false
		}
	}
	return true
}
