package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetricKind(t *testing.T) {
	t.Run("accepts every canonical kind", func(t *testing.T) {
		for _, kind := range AllMetricKinds() {
			parsed, err := ParseMetricKind(kind.String())
			require.NoError(t, err)
			assert.Equal(t, kind, parsed)
		}
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		parsed, err := ParseMetricKind("  Open_Interest ")
		require.NoError(t, err)
		assert.Equal(t, MetricOpenInterest, parsed)
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		_, err := ParseMetricKind("liquidations")
		assert.Error(t, err)
	})
}

func TestMetricKindColumns(t *testing.T) {
	tests := []struct {
		kind    MetricKind
		columns []string
	}{
		{MetricOHLCV, []string{"open", "high", "low", "close", "volume"}},
		{MetricOpenInterest, []string{"open_interest", "open_interest_value"}},
		{MetricTopAccountRatio, []string{"top_account_ls_ratio", "top_account_long_pct", "top_account_short_pct"}},
		{MetricTopPositionRatio, []string{"top_position_ls_ratio", "top_position_long_pct", "top_position_short_pct"}},
		{MetricGlobalRatio, []string{"global_ls_ratio", "global_long_pct", "global_short_pct"}},
		{MetricBasis, []string{"basis", "basis_rate"}},
		{MetricFundingRate, []string{"funding_rate"}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.columns, tt.kind.Columns())
		})
	}

	t.Run("column names are unique across kinds", func(t *testing.T) {
		seen := make(map[string]MetricKind)
		for _, kind := range AllMetricKinds() {
			for _, col := range kind.Columns() {
				prev, dup := seen[col]
				require.False(t, dup, "column %q used by both %s and %s", col, prev, kind)
				seen[col] = kind
			}
		}
	})
}

func TestMetricKindRetentionCapped(t *testing.T) {
	assert.False(t, MetricOHLCV.RetentionCapped())
	assert.False(t, MetricFundingRate.RetentionCapped())

	for _, kind := range []MetricKind{
		MetricOpenInterest, MetricTopAccountRatio, MetricTopPositionRatio,
		MetricGlobalRatio, MetricBasis,
	} {
		assert.True(t, kind.RetentionCapped(), "%s should be retention capped", kind)
	}
}

func TestParseResolution(t *testing.T) {
	t.Run("accepts the supported set", func(t *testing.T) {
		for _, res := range AllResolutions() {
			parsed, err := ParseResolution(res.String())
			require.NoError(t, err)
			assert.Equal(t, res, parsed)
			assert.Greater(t, parsed.Duration(), time.Duration(0))
		}
	})

	t.Run("rejects unsupported values", func(t *testing.T) {
		for _, s := range []string{"1m", "3m", "8h", "1w", ""} {
			_, err := ParseResolution(s)
			assert.Error(t, err, "resolution %q should be rejected", s)
		}
	})
}

func TestResolutionDuration(t *testing.T) {
	assert.Equal(t, time.Hour, Resolution1h.Duration())
	assert.Equal(t, 5*time.Minute, Resolution5m.Duration())
	assert.Equal(t, 24*time.Hour, Resolution1d.Duration())
}
