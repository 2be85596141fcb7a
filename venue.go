// FILE: venue.go
// Package main – the Venue capability interface consumed by the engine core.
//
// Modeled on a perpetual-futures REST+WS API (Binance USDⓈ-M vocabulary).
// All retries, signing, and rate-limiting live behind this interface so the
// engine core is testable against an in-memory fake (venue_paper.go).

package main

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusExpired         OrderStatus = "EXPIRED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusNotFound        OrderStatus = "NOT_FOUND"
	StatusUnknown         OrderStatus = "UNKNOWN"
)

// Order is the venue's view of a single order, live or historical.
type Order struct {
	OrderID       string
	ClientOrderID string
	Side          OrderSide
	Status        OrderStatus
	Price         decimal.Decimal
	OrigQty       decimal.Decimal
	ExecutedQty   decimal.Decimal
	ReduceOnly    bool
}

// Positions reports the venue's per-side open quantity for a symbol.
type Positions struct {
	LongQty  decimal.Decimal
	ShortQty decimal.Decimal
}

// Venue is the single capability interface the engine core is written
// against. Every method may block; the processor worker calls these
// synchronously and absorbs the latency (see SPEC_FULL §5).
type Venue interface {
	Name() string

	// BookTicker returns the current best bid/ask.
	BookTicker(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error)

	// ExchangeInfo returns the symbol's tick/step/min filters.
	ExchangeInfo(ctx context.Context, symbol string) (Filters, error)

	// OpenOrders lists all currently live orders for the symbol.
	OpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// QueryOrder fetches a single order by venue order id. Returns an Order
	// with Status == StatusNotFound (nil error) when the venue has no
	// record of it.
	QueryOrder(ctx context.Context, symbol, orderID string) (Order, error)

	// PlaceLimit places a limit order. Idempotent with respect to
	// clientOrderID: a duplicate send while the earlier order is still live
	// returns that order.
	PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, qty decimal.Decimal, reduceOnly bool, clientOrderID string) (Order, error)

	// CancelOrder cancels a live order. ok is false if the venue reports
	// the order was already gone (not an error).
	CancelOrder(ctx context.Context, symbol, orderID string) (ok bool, err error)

	// Positions reports current per-side open quantity.
	Positions(ctx context.Context, symbol string) (Positions, error)

	// CommissionRate reports the taker fee rate (e.g. 0.0005 for 5bps).
	CommissionRate(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Time returns the venue's server clock, for clock-skew detection.
	Time(ctx context.Context) (time.Time, error)
}
