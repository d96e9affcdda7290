package models

import (
	"time"
)

// Symbol identifies a tradable pair, e.g. "BTC-USD".
type Symbol = string

// TickerPoint is one binned sample of a symbol's price series.
type TickerPoint struct {
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

// AggregateSide summarises one side of the book over a lookback window.
type AggregateSide struct {
	AvgPrice  float64 `json:"avg_price"`
	TotalSize float64 `json:"total_size"`
	Count     int     `json:"count"`
}

// AggregateWindow is the /aggregated_trades result for one window.
type AggregateWindow struct {
	Buys  *AggregateSide `json:"buys"`
	Sells *AggregateSide `json:"sells"`
}

type Trade struct {
	TradeID   Text   `json:"trade_id"`
	ProductID string `json:"product_id"`
	Price     Number `json:"price"`
	Size      Number `json:"size"`
	Side      string `json:"side"`
	Time      string `json:"time"`
}

// ViewState is everything the dashboard renders. It is rebuilt whole on
// every successful poll cycle and never mutated afterwards.
type ViewState struct {
	Graphs     map[Symbol][]TickerPoint              `json:"graphs"`
	Aggregates map[Symbol]map[string]AggregateWindow `json:"aggregates"`
	Trades     map[Symbol][]Trade                    `json:"trades,omitempty"`
	UpdatedAt  time.Time                             `json:"updated_at"`
}

func NewViewState() *ViewState {
	return &ViewState{
		Graphs:     make(map[Symbol][]TickerPoint),
		Aggregates: make(map[Symbol]map[string]AggregateWindow),
		Trades:     make(map[Symbol][]Trade),
	}
}
