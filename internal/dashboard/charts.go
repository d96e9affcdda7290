// Package dashboard turns view state into chart models and serves them to
// browsers. The chart builders are pure: they never retain or modify their
// inputs.
package dashboard

import (
	"github.com/paaavkata/crypto-dashboard/pkg/models"
	"github.com/paaavkata/crypto-dashboard/pkg/utils"
)

// AxisPadding is the fraction of the observed price range added above and
// below the price chart's value axis.
const AxisPadding = 0.1

// Intervals is the display order of the aggregate bars.
var Intervals = []string{"1m", "5m", "10m", "60m"}

type PriceChart struct {
	Ready  bool      `json:"ready"`
	Times  []string  `json:"times"`
	Prices []float64 `json:"prices"`
	YMin   float64   `json:"y_min"`
	YMax   float64   `json:"y_max"`
}

func NewPriceChart(points []models.TickerPoint) PriceChart {
	if len(points) == 0 {
		return PriceChart{}
	}

	chart := PriceChart{
		Ready:  true,
		Times:  make([]string, len(points)),
		Prices: make([]float64, len(points)),
	}
	minPrice, maxPrice := points[0].Price, points[0].Price
	for i, p := range points {
		chart.Times[i] = p.Time
		chart.Prices[i] = p.Price
		if p.Price < minPrice {
			minPrice = p.Price
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
	}

	padding := (maxPrice - minPrice) * AxisPadding
	chart.YMin = minPrice - padding
	chart.YMax = maxPrice + padding
	return chart
}

type VolumeBar struct {
	Interval   string  `json:"interval"`
	BuyVolume  float64 `json:"buy_volume"`
	SellVolume float64 `json:"sell_volume"`
}

// NewAggregateBars derives one buy/sell volume bar per interval. Volume is
// average price times total size; a missing window or side counts as zero.
// A nil input yields nil, which the page renders as nothing.
func NewAggregateBars(windows map[string]models.AggregateWindow) []VolumeBar {
	if windows == nil {
		return nil
	}

	bars := make([]VolumeBar, 0, len(Intervals))
	for _, interval := range Intervals {
		window := windows[interval]
		bars = append(bars, VolumeBar{
			Interval:   interval,
			BuyVolume:  sideVolume(window.Buys),
			SellVolume: sideVolume(window.Sells),
		})
	}
	return bars
}

func sideVolume(side *models.AggregateSide) float64 {
	if side == nil {
		return 0
	}
	return utils.MulFloat(side.AvgPrice, side.TotalSize)
}

type TradeRow struct {
	TradeID string  `json:"trade_id"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Side    string  `json:"side"`
	Color   string  `json:"color"`
}

type TradeList struct {
	Ready bool       `json:"ready"`
	Rows  []TradeRow `json:"rows"`
}

func NewTradeList(trades []models.Trade) TradeList {
	if len(trades) == 0 {
		return TradeList{}
	}

	rows := make([]TradeRow, len(trades))
	for i, trade := range trades {
		color := "red"
		if trade.Side == "BUY" {
			color = "green"
		}
		rows[i] = TradeRow{
			TradeID: string(trade.TradeID),
			Price:   trade.Price.Float64(),
			Size:    trade.Size.Float64(),
			Side:    trade.Side,
			Color:   color,
		}
	}
	return TradeList{Ready: true, Rows: rows}
}

// Panel is everything rendered for one symbol.
type Panel struct {
	Symbol string      `json:"symbol"`
	Price  PriceChart  `json:"price"`
	Bars   []VolumeBar `json:"bars"`
	Trades TradeList   `json:"trades"`
}

// Page is the full dashboard, one panel per tracked symbol in order.
// ShowTrades is set when recent trades are polled at all; until the first
// batch arrives the trade list shows a loading placeholder.
type Page struct {
	UpdatedAt  string  `json:"updated_at,omitempty"`
	ShowTrades bool    `json:"show_trades"`
	Panels     []Panel `json:"panels"`
}

func NewPage(symbols []models.Symbol, state *models.ViewState) Page {
	page := Page{Panels: make([]Panel, 0, len(symbols))}
	if state == nil {
		state = models.NewViewState()
	}
	if !state.UpdatedAt.IsZero() {
		page.UpdatedAt = state.UpdatedAt.Format("15:04:05")
	}

	for _, symbol := range symbols {
		page.Panels = append(page.Panels, Panel{
			Symbol: symbol,
			Price:  NewPriceChart(state.Graphs[symbol]),
			Bars:   NewAggregateBars(state.Aggregates[symbol]),
			Trades: NewTradeList(state.Trades[symbol]),
		})
	}
	return page
}
