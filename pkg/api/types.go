package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/paaavkata/crypto-dashboard/pkg/models"
)

const (
	EndpointTickerData       = "/ticker_data"
	EndpointAggregatedTrades = "/aggregated_trades"
	EndpointRecentTrades     = "/recent_trades"
)

// TimestampLayout matches what browsers send for Date query parameters.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func TickerDataParams(symbol models.Symbol, start time.Time) map[string]string {
	return map[string]string{
		"product_id": symbol,
		"start_time": FormatTimestamp(start),
	}
}

func AggregatedTradesParams(symbol models.Symbol, since time.Time) map[string]string {
	return map[string]string{
		"product_id": symbol,
		"since":      FormatTimestamp(since),
	}
}

func RecentTradesParams(symbol models.Symbol, limit int) map[string]string {
	return map[string]string{
		"product_id": symbol,
		"limit":      strconv.Itoa(limit),
	}
}

func DecodeTickerData(body []byte) ([]models.TickerPoint, error) {
	var points []models.TickerPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker data: %w", err)
	}
	return points, nil
}

func DecodeAggregatedTrades(body []byte) (models.AggregateWindow, error) {
	var window models.AggregateWindow
	if err := json.Unmarshal(body, &window); err != nil {
		return models.AggregateWindow{}, fmt.Errorf("failed to unmarshal aggregated trades: %w", err)
	}
	return window, nil
}

func DecodeRecentTrades(body []byte) ([]models.Trade, error) {
	var trades []models.Trade
	if err := json.Unmarshal(body, &trades); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recent trades: %w", err)
	}
	return trades, nil
}
