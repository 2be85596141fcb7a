// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes primary metrics the engine updates during operation:
//   • grid_buys_placed_total         – Count of buy orders placed
//   • grid_buys_filled_total         – Count of confirmed buy fills
//   • grid_tps_placed_total          – Count of take-profit sells placed
//   • grid_tps_filled_total          – Count of confirmed TP fills
//   • grid_cancels_total{reason}     – Cancels split by reason (reanchor|halt|tp_fill)
//   • grid_reanchors_total           – Count of base_price trail-ups
//   • grid_realized_pnl_usd          – Cumulative realized PnL (gauge)
//   • grid_spent_today_usd           – Notional spent so far today (gauge)
//   • grid_open_positions            – Current open position count (gauge)
//   • grid_open_buys                 – Current live resting buy count (gauge)
//   • grid_base_price_usd            – Current base_price (gauge)
//   • grid_tick_queue_depth          – Processor tick queue depth (gauge)
//
// Registered in init() and served by the HTTP handler started in main.go at
// /metrics (Prometheus text exposition format), exactly as the teacher wires
// its own metrics endpoint.

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var (
	mtxBuysPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_buys_placed_total",
			Help: "Count of grid buy orders placed",
		},
	)

	mtxBuysFilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_buys_filled_total",
			Help: "Count of confirmed grid buy fills",
		},
	)

	mtxTPsPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_tps_placed_total",
			Help: "Count of take-profit sell orders placed",
		},
	)

	mtxTPsFilled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_tps_filled_total",
			Help: "Count of confirmed take-profit fills",
		},
	)

	mtxCancels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grid_cancels_total",
			Help: "Order cancels split by reason",
		},
		[]string{"reason"}, // reanchor|halt|tp_fill
	)

	mtxReanchors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "grid_reanchors_total",
			Help: "Count of base_price trail-ups",
		},
	)

	mtxRealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_realized_pnl_usd",
			Help: "Cumulative realized PnL in USD",
		},
	)

	mtxSpentToday = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_spent_today_usd",
			Help: "Notional spent on buys so far today",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_open_positions",
			Help: "Current open position count",
		},
	)

	mtxOpenBuys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_open_buys",
			Help: "Current live resting buy order count",
		},
	)

	mtxBasePrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_base_price_usd",
			Help: "Current grid anchor (base_price)",
		},
	)

	mtxTickQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "grid_tick_queue_depth",
			Help: "Processor tick queue depth",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxBuysPlaced, mtxBuysFilled, mtxTPsPlaced, mtxTPsFilled)
	prometheus.MustRegister(mtxCancels, mtxReanchors)
	prometheus.MustRegister(mtxRealizedPnL, mtxSpentToday, mtxOpenPositions, mtxOpenBuys, mtxBasePrice)
	prometheus.MustRegister(mtxTickQueueDepth)
}

func IncCancels(reason string) { mtxCancels.WithLabelValues(reason).Inc() }

// ObserveEngineState refreshes the gauges from the current engine snapshot;
// called once per tick after persistence.
func ObserveEngineState(st *EngineState) {
	mtxRealizedPnL.Set(toFloat(st.Bot.RealizedPnL))
	mtxSpentToday.Set(toFloat(st.Bot.SpentToday))
	mtxOpenPositions.Set(float64(len(st.Bot.Positions)))
	mtxOpenBuys.Set(float64(len(st.OpenBuyMap)))
	mtxBasePrice.Set(toFloat(st.Bot.BasePrice))
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
