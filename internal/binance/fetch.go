package binance

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
	"github.com/menglong24/Binance-Data-Analysis/internal/models"
)

const (
	// RetentionWindow is how far back the /futures/data/* statistics
	// endpoints retain history.
	RetentionWindow = 30 * 24 * time.Hour

	// Page sizes per the upstream contract: 500 for the statistics and
	// kline endpoints, 1000 for funding rate.
	statsPageSize   = 500
	fundingPageSize = 1000

	// Funding events occur roughly every 8h, so a 1000-point page covers
	// about 333 days; a 300-day request window keeps each page complete.
	fundingWindowSpan = 300 * 24 * time.Hour
)

// FetchRequest specifies one metric series to fetch.
type FetchRequest struct {
	// Symbol is the perpetual contract symbol, e.g. "BTCUSDT".
	Symbol string

	// Kind selects the metric endpoint.
	Kind models.MetricKind

	// Resolution is the time bucket width. Ignored by the funding-rate
	// endpoint, which has a fixed native cadence.
	Resolution models.Resolution

	// Start and End bound the requested range: [Start, End).
	Start time.Time
	End   time.Time
}

// Validate checks the request parameters, including the retention window
// for the capped statistics endpoints.
func (r FetchRequest) Validate() error {
	const op = "binance.FetchRequest"
	if r.Symbol == "" {
		return apperrors.InvalidRange(op, "symbol cannot be empty")
	}
	if !r.Kind.Valid() {
		return apperrors.InvalidRange(op, "unknown metric kind %q", r.Kind)
	}
	if !r.Resolution.Valid() {
		return apperrors.InvalidRange(op, "unsupported resolution %q", r.Resolution)
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return apperrors.InvalidRange(op, "start and end must be set")
	}
	if !r.Start.Before(r.End) {
		return apperrors.InvalidRange(op, "start %s is not before end %s",
			r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}
	if r.Kind.RetentionCapped() {
		oldest := time.Now().UTC().Add(-RetentionWindow)
		if r.Start.Before(oldest) {
			return apperrors.InvalidRange(op,
				"start %s predates the %s retention window for %s (oldest available: %s)",
				r.Start.Format(time.RFC3339), RetentionWindow, r.Kind, oldest.Format(time.RFC3339))
		}
	}
	return nil
}

// FetchMetric retrieves one complete metric series for the request range,
// paging forward through the endpoint until the range is covered or the
// upstream stops returning data.
//
// The cursor advances to one millisecond past the last timestamp of each
// page; pagination terminates on an empty page, on a page whose last
// timestamp does not advance, or when the range is exhausted. Points are
// deduplicated by timestamp and sorted ascending before the series is
// returned. A range that yields zero points is an EmptyResult error, never
// an empty series.
func (c *Client) FetchMetric(ctx context.Context, req FetchRequest) (*models.MetricSeries, error) {
	const op = "binance.FetchMetric"

	if err := req.Validate(); err != nil {
		return nil, err
	}

	span, pageSize := pageGeometry(req.Kind, req.Resolution)
	log := c.logger.With(
		slog.String("symbol", req.Symbol),
		slog.String("metric", req.Kind.String()),
		slog.String("resolution", req.Resolution.String()),
	)
	log.Debug("fetching metric",
		"start", req.Start.Format(time.RFC3339),
		"end", req.End.Format(time.RFC3339))

	var points []models.MetricPoint
	var lastTS time.Time
	cursor := req.Start
	pages := 0

	for cursor.Before(req.End) {
		windowEnd := cursor.Add(span)
		if windowEnd.After(req.End) {
			windowEnd = req.End
		}

		body, err := c.get(ctx, endpointPath(req.Kind), queryParams(req, cursor, windowEnd, pageSize))
		if err != nil {
			return nil, fmt.Errorf("fetching %s page %d: %w", req.Kind, pages+1, err)
		}

		page, err := decodePage(req.Kind, body)
		if err != nil {
			return nil, err
		}
		pages++

		if len(page) == 0 {
			log.Debug("empty page, stopping pagination", "page", pages)
			break
		}

		pageLast := page[len(page)-1].Timestamp
		if !lastTS.IsZero() && !pageLast.After(lastTS) {
			// Upstream has no newer data; without this check a short
			// final page would loop forever.
			log.Debug("cursor did not advance, stopping pagination", "page", pages)
			break
		}

		points = append(points, page...)
		lastTS = pageLast
		cursor = pageLast.Add(time.Millisecond)

		if !pageLast.Before(req.End) {
			break
		}
	}

	points = dedupeAndSort(points)

	// Drop points outside [Start, End); endpoints may return the bucket
	// containing the end bound.
	points = clampRange(points, req.Start, req.End)

	if len(points) == 0 {
		return nil, apperrors.EmptyResult(op, "no %s data for %s in requested range", req.Kind, req.Symbol)
	}

	series := &models.MetricSeries{
		Symbol:     req.Symbol,
		Resolution: req.Resolution,
		Kind:       req.Kind,
		Points:     points,
	}
	if err := series.Validate(); err != nil {
		return nil, apperrors.Upstream(op, err, "upstream returned an inconsistent %s series", req.Kind)
	}

	first, last := series.Span()
	log.Info("metric fetched",
		"points", len(points),
		"pages", pages,
		"first", first.Format(time.RFC3339),
		"last", last.Format(time.RFC3339))

	return series, nil
}

// pageGeometry returns the request window span and page size for a kind.
// For resolution-bucketed endpoints one window of span resolution×pageSize
// holds exactly one full page.
func pageGeometry(kind models.MetricKind, res models.Resolution) (time.Duration, int) {
	if kind == models.MetricFundingRate {
		return fundingWindowSpan, fundingPageSize
	}
	return time.Duration(statsPageSize) * res.Duration(), statsPageSize
}

// queryParams builds the query string for one page request. The basis
// endpoint addresses contracts by pair + contract type; funding rate takes
// no period parameter.
func queryParams(req FetchRequest, start, end time.Time, pageSize int) url.Values {
	params := url.Values{}
	switch req.Kind {
	case models.MetricBasis:
		params.Set("pair", req.Symbol)
		params.Set("contractType", "PERPETUAL")
		params.Set("period", req.Resolution.String())
	case models.MetricFundingRate:
		params.Set("symbol", req.Symbol)
	case models.MetricOHLCV:
		params.Set("symbol", req.Symbol)
		params.Set("interval", req.Resolution.String())
	default:
		params.Set("symbol", req.Symbol)
		params.Set("period", req.Resolution.String())
	}
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	return params
}

func dedupeAndSort(points []models.MetricPoint) []models.MetricPoint {
	if len(points) == 0 {
		return points
	}
	seen := make(map[int64]struct{}, len(points))
	out := points[:0]
	for _, p := range points {
		key := p.Timestamp.UnixMilli()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func clampRange(points []models.MetricPoint, start, end time.Time) []models.MetricPoint {
	out := points[:0]
	for _, p := range points {
		if p.Timestamp.Before(start) || !p.Timestamp.Before(end) {
			continue
		}
		out = append(out, p)
	}
	return out
}
