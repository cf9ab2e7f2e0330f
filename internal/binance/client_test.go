package binance

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/menglong24/Binance-Data-Analysis/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testClient builds a client against the given server with retry delays
// shrunk so failure paths complete quickly.
func testClient(server *httptest.Server) *Client {
	return NewClient(Config{
		BaseURL:           server.URL,
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             100,
		InitialRetryDelay: time.Millisecond,
		MaxRetryDelay:     5 * time.Millisecond,
		MaxRetryElapsed:   250 * time.Millisecond,
	}, testLogger())
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{}, nil)

	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.limiter)
	assert.NotNil(t, client.logger)
}

func TestClientPing(t *testing.T) {
	t.Run("succeeds against a healthy server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pingEndpoint, r.URL.Path)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		assert.NoError(t, testClient(server).Ping(context.Background()))
	})

	t.Run("reports an unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		err := testClient(server).Ping(context.Background())
		assert.Error(t, err)
	})
}

func TestClientRetry(t *testing.T) {
	t.Run("retries server errors until success", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) <= 2 {
				http.Error(w, "upstream hiccup", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		err := testClient(server).Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("retries 429 responses", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		err := testClient(server).Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := testClient(server).get(context.Background(), "/fapi/v1/klines", nil)
		require.Error(t, err)
		assert.Equal(t, int32(1), attempts.Load(), "4xx must not be retried")
		assert.True(t, apperrors.IsKind(err, apperrors.KindUpstream))
	})

	t.Run("retry attempts pay the rate limiter", func(t *testing.T) {
		var attempts atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if attempts.Add(1) == 1 {
				http.Error(w, "upstream hiccup", http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		// 50 req/s with burst 1: the retry must wait ~20ms for a token
		// even though the backoff delay is only 1ms.
		client := NewClient(Config{
			BaseURL:           server.URL,
			RequestsPerSecond: 50,
			Burst:             1,
			InitialRetryDelay: time.Millisecond,
			MaxRetryDelay:     2 * time.Millisecond,
			MaxRetryElapsed:   time.Second,
		}, testLogger())

		startTime := time.Now()
		err := client.Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(2), attempts.Load())
		assert.GreaterOrEqual(t, time.Since(startTime), 15*time.Millisecond)
	})

	t.Run("persistent server errors surface as upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "still broken", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := testClient(server).get(context.Background(), pingEndpoint, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsKind(err, apperrors.KindUpstream))
	})
}

func TestClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow failure", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(server).get(ctx, pingEndpoint, nil)
	assert.Error(t, err)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
}
