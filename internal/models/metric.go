// Package models provides data structures and validation for Binance USD-M
// futures market metrics. This package contains the metric and resolution
// enumerations, individual time-series points, and the per-metric series
// returned by the fetcher.
package models

import (
	"fmt"
	"strings"
	"time"
)

// MetricKind identifies one of the derivatives metrics the upstream API
// exposes. Each kind maps to exactly one endpoint and a fixed set of value
// columns whose names appear in the exported table header.
type MetricKind string

const (
	// MetricOHLCV is candlestick price and volume data (/fapi/v1/klines).
	MetricOHLCV MetricKind = "ohlcv"

	// MetricOpenInterest is total outstanding contract volume and its
	// notional USD value (/futures/data/openInterestHist).
	MetricOpenInterest MetricKind = "open_interest"

	// MetricTopAccountRatio is the long/short ratio of top-trader accounts
	// (/futures/data/topLongShortAccountRatio).
	MetricTopAccountRatio MetricKind = "top_account_ratio"

	// MetricTopPositionRatio is the long/short ratio of top-trader positions
	// (/futures/data/topLongShortPositionRatio).
	MetricTopPositionRatio MetricKind = "top_position_ratio"

	// MetricGlobalRatio is the market-wide long/short account ratio
	// (/futures/data/globalLongShortAccountRatio).
	MetricGlobalRatio MetricKind = "global_ratio"

	// MetricBasis is the futures-to-spot price difference and its rate
	// (/futures/data/basis).
	MetricBasis MetricKind = "basis"

	// MetricFundingRate is the periodic perpetual funding rate
	// (/fapi/v1/fundingRate). Its native cadence is ~8h regardless of the
	// requested resolution.
	MetricFundingRate MetricKind = "funding_rate"
)

// metricColumns maps each kind to its exported column names, in order.
var metricColumns = map[MetricKind][]string{
	MetricOHLCV:            {"open", "high", "low", "close", "volume"},
	MetricOpenInterest:     {"open_interest", "open_interest_value"},
	MetricTopAccountRatio:  {"top_account_ls_ratio", "top_account_long_pct", "top_account_short_pct"},
	MetricTopPositionRatio: {"top_position_ls_ratio", "top_position_long_pct", "top_position_short_pct"},
	MetricGlobalRatio:      {"global_ls_ratio", "global_long_pct", "global_short_pct"},
	MetricBasis:            {"basis", "basis_rate"},
	MetricFundingRate:      {"funding_rate"},
}

// AllMetricKinds returns every supported metric kind in canonical order:
// price first, then the derivative metrics in the order the upstream
// documentation lists them.
func AllMetricKinds() []MetricKind {
	return []MetricKind{
		MetricOHLCV,
		MetricOpenInterest,
		MetricTopAccountRatio,
		MetricTopPositionRatio,
		MetricGlobalRatio,
		MetricBasis,
		MetricFundingRate,
	}
}

// ParseMetricKind converts a string to a MetricKind.
// Returns an error for unknown kinds.
func ParseMetricKind(s string) (MetricKind, error) {
	kind := MetricKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricColumns[kind]; !ok {
		return "", fmt.Errorf("unknown metric kind: %q", s)
	}
	return kind, nil
}

// Valid reports whether the kind is one of the supported metrics.
func (k MetricKind) Valid() bool {
	_, ok := metricColumns[k]
	return ok
}

// Columns returns the value column names for this kind, in the order the
// values appear in MetricPoint.Values. The returned slice must not be
// modified by the caller.
func (k MetricKind) Columns() []string {
	return metricColumns[k]
}

// RetentionCapped reports whether the upstream retains only ~30 days of
// history for this kind. The /futures/data/* statistics endpoints are
// capped; klines and funding rate are not.
func (k MetricKind) RetentionCapped() bool {
	switch k {
	case MetricOHLCV, MetricFundingRate:
		return false
	default:
		return true
	}
}

// String implements fmt.Stringer.
func (k MetricKind) String() string {
	return string(k)
}

// Resolution is the time bucket width of a requested series. The set is
// fixed by the upstream statistics endpoints.
type Resolution string

const (
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution30m Resolution = "30m"
	Resolution1h  Resolution = "1h"
	Resolution2h  Resolution = "2h"
	Resolution4h  Resolution = "4h"
	Resolution6h  Resolution = "6h"
	Resolution12h Resolution = "12h"
	Resolution1d  Resolution = "1d"
)

var resolutionDurations = map[Resolution]time.Duration{
	Resolution5m:  5 * time.Minute,
	Resolution15m: 15 * time.Minute,
	Resolution30m: 30 * time.Minute,
	Resolution1h:  time.Hour,
	Resolution2h:  2 * time.Hour,
	Resolution4h:  4 * time.Hour,
	Resolution6h:  6 * time.Hour,
	Resolution12h: 12 * time.Hour,
	Resolution1d:  24 * time.Hour,
}

// AllResolutions returns the supported resolutions from finest to coarsest.
func AllResolutions() []Resolution {
	return []Resolution{
		Resolution5m, Resolution15m, Resolution30m,
		Resolution1h, Resolution2h, Resolution4h,
		Resolution6h, Resolution12h, Resolution1d,
	}
}

// ParseResolution converts a string to a Resolution.
// Returns an error for values outside the supported set.
func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := resolutionDurations[r]; !ok {
		return "", fmt.Errorf("unsupported resolution: %q (supported: 5m 15m 30m 1h 2h 4h 6h 12h 1d)", s)
	}
	return r, nil
}

// Valid reports whether the resolution is in the supported set.
func (r Resolution) Valid() bool {
	_, ok := resolutionDurations[r]
	return ok
}

// Duration returns the bucket width as a time.Duration.
func (r Resolution) Duration() time.Duration {
	return resolutionDurations[r]
}

// String implements fmt.Stringer.
func (r Resolution) String() string {
	return string(r)
}
