package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkarsten/tickersync/internal/models"
)

const samplePrices = `[
	{"date":"2024-01-03T00:00:00.000Z","open":184.22,"high":185.88,"low":183.43,"close":184.25,"adjClose":183.92,"volume":58414500},
	{"date":"2024-01-02T00:00:00.000Z","open":187.15,"high":188.44,"low":183.885,"close":185.64,"adjClose":185.31,"volume":82488700}
]`

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func testInterval() models.Interval {
	return models.Interval{Start: date("2024-01-01"), End: date("2024-01-05")}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *TiingoClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewTiingoClient("test-key",
		WithBaseURL(server.URL),
		WithRateLimit(1000))
	require.NoError(t, err)
	return client
}

func TestNewTiingoClientRequiresKey(t *testing.T) {
	_, err := NewTiingoClient("")
	assert.Error(t, err)
}

func TestTiingoFetch(t *testing.T) {
	var gotPath, gotAuth, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, samplePrices)
	})

	series, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.NoError(t, err)

	assert.Equal(t, "/tiingo/daily/AAPL/prices", gotPath)
	assert.Equal(t, "Token test-key", gotAuth)
	assert.Contains(t, gotQuery, "startDate=2024-01-01")
	assert.Contains(t, gotQuery, "endDate=2024-01-05")
	assert.Contains(t, gotQuery, "resampleFreq=daily")

	require.Len(t, series, 2)
	assert.True(t, series.IsSorted(), "response arrives unsorted; client sorts")
	assert.Equal(t, date("2024-01-02"), series[0].Date)
	assert.Equal(t, "187.15", series[0].Open)
	assert.Equal(t, "185.31", series[0].AdjClose)
	assert.Equal(t, "82488700", series[0].Volume)
	assert.Equal(t, "AAPL", series[0].Ticker)
}

func TestTiingoFetchEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	series, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.NoError(t, err, "an empty array is a valid no-data response")
	assert.Empty(t, series)
}

func TestTiingoFetchClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "ticker not found", http.StatusNotFound)
	})

	_, err := client.Fetch(context.Background(), "NOSUCH", testInterval(), models.FrequencyDaily)
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "NOSUCH", fetchErr.Ticker)
	assert.Equal(t, testInterval(), fetchErr.Interval)

	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestTiingoFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, samplePrices)
	})

	series, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTiingoFetchRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	_, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTiingoFetchGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	_, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.Error(t, err)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestTiingoFetchSkipsMalformedBars(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// The middle bar has a zero open price and fails validation.
		fmt.Fprint(w, `[
			{"date":"2024-01-02T00:00:00.000Z","open":10,"high":11,"low":9,"close":10.5,"adjClose":10.5,"volume":100},
			{"date":"2024-01-03T00:00:00.000Z","open":0,"high":11,"low":9,"close":10.5,"adjClose":10.5,"volume":100},
			{"date":"2024-01-04T00:00:00.000Z","open":10,"high":11,"low":9,"close":10.5,"adjClose":10.5,"volume":100}
		]`)
	})

	series, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, date("2024-01-02"), series[0].Date)
	assert.Equal(t, date("2024-01-04"), series[1].Date)
}

func TestTiingoFetchMalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"detail":"not an array"}`)
	})

	_, err := client.Fetch(context.Background(), "AAPL", testInterval(), models.FrequencyDaily)
	require.Error(t, err)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestTiingoFetchInvalidInterval(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made for an invalid interval")
	})

	bad := models.Interval{Start: date("2024-02-01"), End: date("2024-01-01")}
	_, err := client.Fetch(context.Background(), "AAPL", bad, models.FrequencyDaily)
	require.Error(t, err)

	var rangeErr *models.InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestTiingoFetchContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Fetch(ctx, "AAPL", testInterval(), models.FrequencyDaily)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTiingoDate(t *testing.T) {
	got, err := parseTiingoDate("2024-01-02T00:00:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-02"), got)

	got, err = parseTiingoDate("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, date("2024-01-02"), got)

	_, err = parseTiingoDate("02/01/2024")
	assert.Error(t, err)
}

func TestStatusErrorRetryable(t *testing.T) {
	assert.True(t, (&statusError{code: http.StatusTooManyRequests}).retryable())
	assert.True(t, (&statusError{code: http.StatusInternalServerError}).retryable())
	assert.True(t, (&statusError{code: http.StatusBadGateway}).retryable())
	assert.False(t, (&statusError{code: http.StatusNotFound}).retryable())
	assert.False(t, (&statusError{code: http.StatusUnauthorized}).retryable())
}

func TestTiingoHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/test", r.URL.Path)
		fmt.Fprint(w, `{"message":"You successfully sent a request"}`)
	})
	assert.NoError(t, client.HealthCheck(context.Background()))

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	})
	assert.Error(t, failing.HealthCheck(context.Background()))
}
