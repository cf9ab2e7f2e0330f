package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	t.Run("message only", func(t *testing.T) {
		err := InvalidRange("binance.FetchRequest", "start %s is not before end", "2026-08-20")
		assert.Equal(t, "binance.FetchRequest [invalid_range]: start 2026-08-20 is not before end", err.Error())
	})

	t.Run("wrapped cause with message", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Upstream("binance.get", cause, "GET /fapi/v1/klines")
		assert.Contains(t, err.Error(), "binance.get")
		assert.Contains(t, err.Error(), "upstream")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := Format("table.ReadCSV", cause, "parsing data.csv")

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"invalid range", InvalidRange("op", "bad range"), KindInvalidRange},
		{"upstream", Upstream("op", nil, "status 502"), KindUpstream},
		{"format", Format("op", nil, "ragged row"), KindFormat},
		{"empty result", EmptyResult("op", "no data"), KindEmptyResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.kind))
		})
	}

	t.Run("survives fmt.Errorf wrapping", func(t *testing.T) {
		inner := EmptyResult("binance.FetchMetric", "no basis data")
		wrapped := fmt.Errorf("fetching basis: %w", inner)

		assert.Equal(t, KindEmptyResult, KindOf(wrapped))
		assert.True(t, IsKind(wrapped, KindEmptyResult))
	})

	t.Run("plain errors carry no kind", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
		assert.False(t, IsKind(nil, KindUpstream))
	})
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := Upstream("binance.get", nil, "status 503")
	b := Upstream("binance.Ping", nil, "status 500")
	c := Format("table.ReadCSV", nil, "bad header")

	require.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
