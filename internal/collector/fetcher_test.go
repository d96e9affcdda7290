package collector

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/paaavkata/crypto-dashboard/internal/queue"
	"github.com/paaavkata/crypto-dashboard/pkg/api"
)

// MockDispatcher is a mock type for the backend client used by the queue
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	args := m.Called(ctx, endpoint, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const (
	tickerBody = `[{"time":"2024-12-01T00:00:00","price":90},{"time":"2024-12-01T00:00:10","price":110}]`
	aggBody    = `{"buys":{"avg_price":10,"total_size":5,"count":2},"sells":{"avg_price":8,"total_size":3,"count":1}}`
	tradesBody = `[{"trade_id":"1","product_id":"BTC-USD","price":"100.5","size":"0.2","side":"BUY","time":"2024-12-01T10:00:00"}]`
)

func productIs(symbol string) interface{} {
	return mock.MatchedBy(func(p map[string]string) bool { return p["product_id"] == symbol })
}

func newTestFetcher(t *testing.T, d queue.Dispatcher, symbols []string, tradesLimit int) *Fetcher {
	t.Helper()
	q := queue.New(d, time.Millisecond, newTestLogger())
	t.Cleanup(q.Close)
	return NewFetcher(q, symbols, tradesLimit, newTestLogger())
}

func TestFetcher_FetchCycle_IssuesTenRequestsForTwoSymbols(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Get", mock.Anything, api.EndpointTickerData, mock.Anything).Return([]byte(tickerBody), nil)
	d.On("Get", mock.Anything, api.EndpointAggregatedTrades, mock.Anything).Return([]byte(aggBody), nil)

	fetcher := newTestFetcher(t, d, []string{"BTC-USD", "ETH-USD"}, 0)
	now := time.Date(2024, 12, 1, 15, 30, 0, 0, time.UTC)

	state, err := fetcher.FetchCycle(context.Background(), now)
	require.NoError(t, err)

	require.Len(t, d.Calls, 10)
	d.AssertNumberOfCalls(t, "Get", 10)

	type call struct{ endpoint, product, bound string }
	var got []call
	for _, c := range d.Calls {
		params := c.Arguments.Get(2).(map[string]string)
		bound := params["start_time"]
		if bound == "" {
			bound = params["since"]
		}
		got = append(got, call{c.Arguments.String(1), params["product_id"], bound})
	}

	expected := []call{
		{api.EndpointTickerData, "BTC-USD", "2024-12-01T00:00:00.000Z"},
		{api.EndpointTickerData, "ETH-USD", "2024-12-01T00:00:00.000Z"},
		{api.EndpointAggregatedTrades, "BTC-USD", "2024-12-01T15:29:00.000Z"},
		{api.EndpointAggregatedTrades, "ETH-USD", "2024-12-01T15:29:00.000Z"},
		{api.EndpointAggregatedTrades, "BTC-USD", "2024-12-01T15:20:00.000Z"},
		{api.EndpointAggregatedTrades, "ETH-USD", "2024-12-01T15:20:00.000Z"},
		{api.EndpointAggregatedTrades, "BTC-USD", "2024-12-01T15:20:00.000Z"},
		{api.EndpointAggregatedTrades, "ETH-USD", "2024-12-01T15:20:00.000Z"},
		{api.EndpointAggregatedTrades, "BTC-USD", "2024-12-01T14:30:00.000Z"},
		{api.EndpointAggregatedTrades, "ETH-USD", "2024-12-01T14:30:00.000Z"},
	}
	assert.Equal(t, expected, got)

	assert.Equal(t, now, state.UpdatedAt)
	require.Len(t, state.Graphs, 2)
	assert.Len(t, state.Graphs["BTC-USD"], 2)
	assert.Equal(t, 110.0, state.Graphs["ETH-USD"][1].Price)

	require.Len(t, state.Aggregates, 2)
	for _, symbol := range []string{"BTC-USD", "ETH-USD"} {
		windows := state.Aggregates[symbol]
		require.Len(t, windows, 4)
		for _, label := range []string{"1m", "5m", "10m", "60m"} {
			require.Contains(t, windows, label)
			assert.Equal(t, 10.0, windows[label].Buys.AvgPrice)
			assert.Equal(t, 3.0, windows[label].Sells.TotalSize)
		}
	}
	assert.Empty(t, state.Trades)
}

func TestFetcher_FetchCycle_RecentTradesWhenEnabled(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Get", mock.Anything, api.EndpointTickerData, mock.Anything).Return([]byte(tickerBody), nil)
	d.On("Get", mock.Anything, api.EndpointAggregatedTrades, mock.Anything).Return([]byte(aggBody), nil)
	d.On("Get", mock.Anything, api.EndpointRecentTrades, mock.Anything).Return([]byte(tradesBody), nil)

	fetcher := newTestFetcher(t, d, []string{"BTC-USD"}, 10)

	state, err := fetcher.FetchCycle(context.Background(), time.Now())
	require.NoError(t, err)

	d.AssertNumberOfCalls(t, "Get", 6)
	last := d.Calls[5]
	assert.Equal(t, api.EndpointRecentTrades, last.Arguments.String(1))
	assert.Equal(t, "10", last.Arguments.Get(2).(map[string]string)["limit"])

	require.Len(t, state.Trades["BTC-USD"], 1)
	assert.Equal(t, "BUY", state.Trades["BTC-USD"][0].Side)
	assert.Equal(t, 100.5, state.Trades["BTC-USD"][0].Price.Float64())
}

func TestFetcher_FetchCycle_TickerFailureFailsCycle(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Get", mock.Anything, api.EndpointTickerData, productIs("BTC-USD")).Return([]byte(tickerBody), nil)
	d.On("Get", mock.Anything, api.EndpointTickerData, productIs("ETH-USD")).Return(nil, errors.New("connection refused"))
	d.On("Get", mock.Anything, api.EndpointAggregatedTrades, mock.Anything).Return([]byte(aggBody), nil)

	fetcher := newTestFetcher(t, d, []string{"BTC-USD", "ETH-USD"}, 0)

	state, err := fetcher.FetchCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.Nil(t, state)
	assert.Contains(t, err.Error(), "ticker data")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestFetcher_FetchCycle_AggregationFailureFailsCycle(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Get", mock.Anything, api.EndpointTickerData, mock.Anything).Return([]byte(tickerBody), nil)
	d.On("Get", mock.Anything, api.EndpointAggregatedTrades, mock.Anything).Return(nil, &api.StatusError{Endpoint: api.EndpointAggregatedTrades, StatusCode: 500})

	fetcher := newTestFetcher(t, d, []string{"BTC-USD"}, 0)

	_, err := fetcher.FetchCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1m aggregated trades")

	var statusErr *api.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestFetcher_FetchCycle_MalformedBody(t *testing.T) {
	d := new(MockDispatcher)
	d.On("Get", mock.Anything, api.EndpointTickerData, mock.Anything).Return([]byte(`{"error":"nope"}`), nil)
	d.On("Get", mock.Anything, api.EndpointAggregatedTrades, mock.Anything).Return([]byte(aggBody), nil)

	fetcher := newTestFetcher(t, d, []string{"BTC-USD"}, 0)

	_, err := fetcher.FetchCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BTC-USD")
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 12, 1, 23, 59, 59, 999, loc)

	start := StartOfDay(now)

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, loc), start)
	assert.Equal(t, "2024-12-01T05:00:00.000Z", api.FormatTimestamp(start))
}

func TestDefaultWindows(t *testing.T) {
	var labels []string
	var lookbacks []time.Duration
	for _, w := range DefaultWindows {
		labels = append(labels, w.Label)
		lookbacks = append(lookbacks, w.Lookback)
	}
	assert.Equal(t, []string{"1m", "5m", "10m", "60m"}, labels)
	assert.Equal(t, []time.Duration{time.Minute, 10 * time.Minute, 10 * time.Minute, time.Hour}, lookbacks)
}
