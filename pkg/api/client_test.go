package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestClient_Get_SendsQueryUnderBaseURL(t *testing.T) {
	var gotPath, gotProduct, gotStart string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotProduct = r.URL.Query().Get("product_id")
		gotStart = r.URL.Query().Get("start_time")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"time":"2024-12-01T00:00:00","price":100.5}]`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/api", Timeout: time.Second}, newTestLogger())
	start := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	body, err := client.Get(context.Background(), EndpointTickerData, TickerDataParams("BTC-USD", start))
	require.NoError(t, err)

	assert.Equal(t, "/api/ticker_data", gotPath)
	assert.Equal(t, "BTC-USD", gotProduct)
	assert.Equal(t, "2024-12-01T00:00:00.000Z", gotStart)

	points, err := DecodeTickerData(body)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 100.5, points[0].Price)
}

func TestClient_Get_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Missing 'product_id' or 'since'"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, newTestLogger())

	_, err := client.Get(context.Background(), EndpointAggregatedTrades, nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "Missing")
}

func TestClient_Get_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, Timeout: time.Second}, newTestLogger())

	_, err := client.Get(context.Background(), EndpointTickerData, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestClient_Get_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, newTestLogger())

	start := time.Now()
	_, err := client.Get(context.Background(), EndpointTickerData, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDecodeAggregatedTrades(t *testing.T) {
	body := []byte(`{"buys":{"total_size":5,"avg_price":10,"count":2},"sells":{"total_size":3,"avg_price":8,"count":1}}`)

	window, err := DecodeAggregatedTrades(body)
	require.NoError(t, err)
	require.NotNil(t, window.Buys)
	require.NotNil(t, window.Sells)
	assert.Equal(t, 10.0, window.Buys.AvgPrice)
	assert.Equal(t, 5.0, window.Buys.TotalSize)
	assert.Equal(t, 2, window.Buys.Count)
	assert.Equal(t, 8.0, window.Sells.AvgPrice)

	_, err = DecodeAggregatedTrades([]byte(`not json`))
	assert.Error(t, err)
}

func TestParamBuilders(t *testing.T) {
	since := time.Date(2024, 12, 1, 9, 59, 0, 123_000_000, time.FixedZone("CET", 3600))

	assert.Equal(t, map[string]string{
		"product_id": "ETH-USD",
		"since":      "2024-12-01T08:59:00.123Z",
	}, AggregatedTradesParams("ETH-USD", since))

	assert.Equal(t, map[string]string{
		"product_id": "ETH-USD",
		"limit":      "10",
	}, RecentTradesParams("ETH-USD", 10))
}
