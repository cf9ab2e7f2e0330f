// Package align merges per-metric series onto a shared timestamp axis.
//
// The axis is the sorted, deduplicated union of every input series'
// timestamps. Cell placement is exact-match only: a metric contributes a
// value to a row only when it has an observation at precisely that
// timestamp, and contributes the missing marker otherwise. No interpolation
// or forward-filling is performed; funding-rate points, which occur every
// ~8h, therefore appear on their native timestamps with gaps in between.
package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/menglong24/Binance-Data-Analysis/internal/models"
	"github.com/menglong24/Binance-Data-Analysis/internal/table"
)

// Align merges the given series into one table. Input order determines
// column group order. Each metric kind may appear at most once.
func Align(series []*models.MetricSeries) (*table.Table, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("nothing to align: no series given")
	}

	seen := make(map[models.MetricKind]struct{}, len(series))
	for _, s := range series {
		if _, dup := seen[s.Kind]; dup {
			return nil, fmt.Errorf("duplicate series for metric %s", s.Kind)
		}
		seen[s.Kind] = struct{}{}
	}

	axis := timestampUnion(series)

	// Column layout: the value columns of each series, in input order.
	var columns []string
	offsets := make([]int, len(series))
	for i, s := range series {
		offsets[i] = len(columns)
		columns = append(columns, s.Kind.Columns()...)
	}

	// Per-series timestamp index for O(1) exact-match lookup.
	indexes := make([]map[int64]*models.MetricPoint, len(series))
	for i, s := range series {
		idx := make(map[int64]*models.MetricPoint, len(s.Points))
		for j := range s.Points {
			idx[s.Points[j].Timestamp.UnixMilli()] = &s.Points[j]
		}
		indexes[i] = idx
	}

	t := &table.Table{
		Columns: columns,
		Rows:    make([]table.Row, 0, len(axis)),
	}
	for _, ts := range axis {
		cells := make([]string, len(columns))
		for i := range cells {
			cells[i] = table.MissingMarker
		}
		for i, s := range series {
			point, ok := indexes[i][ts.UnixMilli()]
			if !ok {
				continue
			}
			copy(cells[offsets[i]:offsets[i]+len(s.Kind.Columns())], point.Values)
		}
		t.Rows = append(t.Rows, table.Row{Timestamp: ts, Cells: cells})
	}

	return t, nil
}

// timestampUnion returns the sorted, deduplicated union of all series
// timestamps in UTC.
func timestampUnion(series []*models.MetricSeries) []time.Time {
	seen := make(map[int64]struct{})
	var out []time.Time
	for _, s := range series {
		for _, p := range s.Points {
			key := p.Timestamp.UnixMilli()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, p.Timestamp.UTC())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
