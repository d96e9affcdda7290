package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/paaavkata/crypto-dashboard/internal/queue"
	"github.com/paaavkata/crypto-dashboard/pkg/api"
	"github.com/paaavkata/crypto-dashboard/pkg/models"
)

// Window is one aggregation lookback shown on the dashboard.
type Window struct {
	Label    string
	Lookback time.Duration
}

// DefaultWindows are the dashboard's aggregation windows. The 5m and 10m
// windows both look back 600s, as the dashboard always has.
var DefaultWindows = []Window{
	{Label: "1m", Lookback: 60 * time.Second},
	{Label: "5m", Lookback: 600 * time.Second},
	{Label: "10m", Lookback: 600 * time.Second},
	{Label: "60m", Lookback: 3600 * time.Second},
}

// Enqueuer submits a request to the throttle queue.
type Enqueuer interface {
	Enqueue(endpoint string, params map[string]string) *queue.Pending
}

type Fetcher struct {
	queue             Enqueuer
	symbols           []models.Symbol
	windows           []Window
	recentTradesLimit int
	logger            *logrus.Logger
}

func NewFetcher(q Enqueuer, symbols []models.Symbol, recentTradesLimit int, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		queue:             q,
		symbols:           symbols,
		windows:           DefaultWindows,
		recentTradesLimit: recentTradesLimit,
		logger:            logger,
	}
}

// Symbols returns the tracked symbols in display order.
func (f *Fetcher) Symbols() []models.Symbol {
	return f.symbols
}

// Windows returns the aggregation windows in display order.
func (f *Fetcher) Windows() []Window {
	return f.windows
}

// StartOfDay is local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// FetchCycle submits every request of one poll cycle before awaiting any of
// them, then assembles a fresh view state. Any failed request fails the
// whole cycle and no state is returned.
func (f *Fetcher) FetchCycle(ctx context.Context, now time.Time) (*models.ViewState, error) {
	logger := f.logger.WithFields(logrus.Fields{
		"cycle_id": uuid.NewString(),
		"symbols":  len(f.symbols),
	})

	startOfDay := StartOfDay(now)
	tickers := make([]*queue.Pending, len(f.symbols))
	for i, symbol := range f.symbols {
		tickers[i] = f.queue.Enqueue(api.EndpointTickerData, api.TickerDataParams(symbol, startOfDay))
	}

	aggregates := make([][]*queue.Pending, len(f.windows))
	for w, window := range f.windows {
		since := now.Add(-window.Lookback)
		aggregates[w] = make([]*queue.Pending, len(f.symbols))
		for i, symbol := range f.symbols {
			aggregates[w][i] = f.queue.Enqueue(api.EndpointAggregatedTrades, api.AggregatedTradesParams(symbol, since))
		}
	}

	var trades []*queue.Pending
	if f.recentTradesLimit > 0 {
		trades = make([]*queue.Pending, len(f.symbols))
		for i, symbol := range f.symbols {
			trades[i] = f.queue.Enqueue(api.EndpointRecentTrades, api.RecentTradesParams(symbol, f.recentTradesLimit))
		}
	}

	logger.WithField("requests", len(tickers)+len(f.windows)*len(f.symbols)+len(trades)).Debug("Poll cycle requests queued")

	state := models.NewViewState()
	state.UpdatedAt = now

	bodies, err := awaitAll(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker data: %w", err)
	}
	for i, body := range bodies {
		points, err := api.DecodeTickerData(body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.symbols[i], err)
		}
		state.Graphs[f.symbols[i]] = points
	}

	for _, symbol := range f.symbols {
		state.Aggregates[symbol] = make(map[string]models.AggregateWindow, len(f.windows))
	}
	for w, window := range f.windows {
		bodies, err := awaitAll(ctx, aggregates[w])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s aggregated trades: %w", window.Label, err)
		}
		for i, body := range bodies {
			agg, err := api.DecodeAggregatedTrades(body)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", f.symbols[i], window.Label, err)
			}
			state.Aggregates[f.symbols[i]][window.Label] = agg
		}
	}

	if trades != nil {
		bodies, err := awaitAll(ctx, trades)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch recent trades: %w", err)
		}
		for i, body := range bodies {
			list, err := api.DecodeRecentTrades(body)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.symbols[i], err)
			}
			state.Trades[f.symbols[i]] = list
		}
	}

	return state, nil
}

// awaitAll waits for every pending request in order and fails on the first
// error, leaving the rest to drain through the queue.
func awaitAll(ctx context.Context, group []*queue.Pending) ([][]byte, error) {
	bodies := make([][]byte, len(group))
	for i, p := range group {
		body, err := p.Wait(ctx)
		if err != nil {
			return nil, err
		}
		bodies[i] = body
	}
	return bodies, nil
}
