package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MetricPoint is a single observation of one metric: a timestamp plus one
// decimal-string value per column of the metric kind. Values are kept as
// the exact strings the upstream returned so that repeated fetches over a
// stable window export byte-identical tables.
type MetricPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Values    []string  `json:"values"`
}

// ValidationError represents a series validation error with field context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message is a descriptive error message
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the point carries a timestamp and one parseable
// decimal value per column of the given kind.
func (p *MetricPoint) Validate(kind MetricKind) error {
	if p.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp cannot be zero"}
	}
	cols := kind.Columns()
	if len(p.Values) != len(cols) {
		return &ValidationError{
			Field:   "values",
			Message: fmt.Sprintf("%s point has %d values, want %d", kind, len(p.Values), len(cols)),
		}
	}
	for i, v := range p.Values {
		if _, err := decimal.NewFromString(v); err != nil {
			return &ValidationError{
				Field:   cols[i],
				Message: fmt.Sprintf("invalid decimal value %q: %v", v, err),
			}
		}
	}
	return nil
}

// Value returns the decimal value at column index i.
func (p *MetricPoint) Value(i int) (decimal.Decimal, error) {
	if i < 0 || i >= len(p.Values) {
		return decimal.Zero, fmt.Errorf("value index %d out of range", i)
	}
	return decimal.NewFromString(p.Values[i])
}

// MetricSeries is an ordered sequence of points for one metric, identified
// by (symbol, resolution, kind). Timestamps are strictly increasing and
// unique; Validate enforces the invariant.
type MetricSeries struct {
	Symbol     string        `json:"symbol"`
	Resolution Resolution    `json:"resolution"`
	Kind       MetricKind    `json:"kind"`
	Points     []MetricPoint `json:"points"`
}

// Validate checks the series identity fields, every point, and the
// strictly-increasing timestamp invariant.
func (s *MetricSeries) Validate() error {
	if s.Symbol == "" {
		return &ValidationError{Field: "symbol", Message: "symbol cannot be empty"}
	}
	if !s.Kind.Valid() {
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown metric kind %q", s.Kind)}
	}
	if !s.Resolution.Valid() {
		return &ValidationError{Field: "resolution", Message: fmt.Sprintf("unsupported resolution %q", s.Resolution)}
	}
	for i := range s.Points {
		if err := s.Points[i].Validate(s.Kind); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if i > 0 && !s.Points[i].Timestamp.After(s.Points[i-1].Timestamp) {
			return &ValidationError{
				Field: "points",
				Message: fmt.Sprintf("timestamps must be strictly increasing: point %d (%s) <= point %d (%s)",
					i, s.Points[i].Timestamp.Format(time.RFC3339),
					i-1, s.Points[i-1].Timestamp.Format(time.RFC3339)),
			}
		}
	}
	return nil
}

// At returns the point with the exact timestamp ts, or false when the
// series has no observation at ts. Lookup is linear; callers that probe
// many timestamps should build their own index (see internal/align).
func (s *MetricSeries) At(ts time.Time) (MetricPoint, bool) {
	for i := range s.Points {
		if s.Points[i].Timestamp.Equal(ts) {
			return s.Points[i], true
		}
	}
	return MetricPoint{}, false
}

// Span returns the first and last timestamps of the series. Zero times are
// returned for an empty series.
func (s *MetricSeries) Span() (start, end time.Time) {
	if len(s.Points) == 0 {
		return time.Time{}, time.Time{}
	}
	return s.Points[0].Timestamp, s.Points[len(s.Points)-1].Timestamp
}

// String returns a short human-readable description of the series.
func (s *MetricSeries) String() string {
	return fmt.Sprintf("MetricSeries{%s %s %s, %d points}", s.Symbol, s.Kind, s.Resolution, len(s.Points))
}
