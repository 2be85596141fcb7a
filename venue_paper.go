// FILE: venue_paper.go
// Package main – in-memory Venue fake for dry-run mode and tests.
//
// Grounded on _examples/chidi150c-coinbase/broker_paper.go's PaperBroker
// (in-memory order book, uuid.New() order ids, instant-fill-on-cross
// semantics); extended here with resting (unfilled-until-crossed) limit
// orders and reduce-only bookkeeping since the grid engine depends on
// orders resting until the market trades through them.

package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaperVenue simulates a single symbol's order book against an externally
// fed mid-price. Orders fill when the simulated trade price crosses them.
type PaperVenue struct {
	mu      sync.Mutex
	symbol  string
	filters Filters
	orders  map[string]*Order // orderID -> order
	byCID   map[string]string // clientOrderID -> orderID
	last    decimal.Decimal
	long    decimal.Decimal
	short   decimal.Decimal
	fee     decimal.Decimal
}

func NewPaperVenue(symbol string, filters Filters, fee decimal.Decimal) *PaperVenue {
	return &PaperVenue{
		symbol:  symbol,
		filters: filters,
		orders:  map[string]*Order{},
		byCID:   map[string]string{},
		fee:     fee,
	}
}

func (p *PaperVenue) Name() string { return "paper" }

// SetLast feeds the simulated last-traded price and fills any resting order
// it crosses. Test helper, also usable by a paper price feed.
func (p *PaperVenue) SetLast(price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = price
	for _, o := range p.orders {
		if o.Status != StatusNew && o.Status != StatusPartiallyFilled {
			continue
		}
		crossed := (o.Side == SideBuy && price.LessThanOrEqual(o.Price)) ||
			(o.Side == SideSell && price.GreaterThanOrEqual(o.Price))
		if !crossed {
			continue
		}
		o.ExecutedQty = o.OrigQty
		o.Status = StatusFilled
		if o.ReduceOnly {
			if o.Side == SideSell {
				p.long = p.long.Sub(o.OrigQty)
			} else {
				p.short = p.short.Sub(o.OrigQty)
			}
		} else {
			if o.Side == SideBuy {
				p.long = p.long.Add(o.OrigQty)
			} else {
				p.short = p.short.Add(o.OrigQty)
			}
		}
	}
}

func (p *PaperVenue) BookTicker(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spread := p.filters.TickSize
	return p.last.Sub(spread), p.last.Add(spread), nil
}

func (p *PaperVenue) ExchangeInfo(ctx context.Context, symbol string) (Filters, error) {
	return p.filters, nil
}

func (p *PaperVenue) OpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Order
	for _, o := range p.orders {
		if o.Status == StatusNew || o.Status == StatusPartiallyFilled {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (p *PaperVenue) QueryOrder(ctx context.Context, symbol, orderID string) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[orderID]
	if !ok {
		return Order{OrderID: orderID, Status: StatusNotFound}, nil
	}
	return *o, nil
}

func (p *PaperVenue) PlaceLimit(ctx context.Context, symbol string, side OrderSide, price, qty decimal.Decimal, reduceOnly bool, clientOrderID string) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existingID, ok := p.byCID[clientOrderID]; ok {
		if existing := p.orders[existingID]; existing.Status == StatusNew || existing.Status == StatusPartiallyFilled {
			return *existing, nil
		}
	}

	id := uuid.New().String()
	o := &Order{
		OrderID:       id,
		ClientOrderID: clientOrderID,
		Side:          side,
		Status:        StatusNew,
		Price:         price,
		OrigQty:       qty,
		ExecutedQty:   decimal.Zero,
		ReduceOnly:    reduceOnly,
	}
	p.orders[id] = o
	p.byCID[clientOrderID] = id
	return *o, nil
}

func (p *PaperVenue) CancelOrder(ctx context.Context, symbol, orderID string) (ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, exists := p.orders[orderID]
	if !exists || (o.Status != StatusNew && o.Status != StatusPartiallyFilled) {
		return false, nil
	}
	o.Status = StatusCanceled
	return true, nil
}

func (p *PaperVenue) Positions(ctx context.Context, symbol string) (Positions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Positions{LongQty: p.long, ShortQty: p.short}, nil
}

func (p *PaperVenue) CommissionRate(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return p.fee, nil
}

func (p *PaperVenue) Time(ctx context.Context) (time.Time, error) {
	return time.Now(), nil
}
