// FILE: pricefeed.go
// Package main – Price Feed: streams bookTicker over a websocket with a
// REST-poll fallback, feeding Tick values into the engine's queue.
//
// Grounded on _examples/web3guy0-polybot's internal/binance/client.go
// (gorilla/websocket dial + read-loop + reconnect channel shape) and this
// repo's own venue.BookTicker as the REST fallback path: polled on
// cfg.PriceRefresh cadence when the websocket is not used, and once per
// failed dial attempt while the stream is down — the engine never stalls
// waiting on either source alone.

package main

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const binanceFuturesWSBase = "wss://fstream.binance.com/ws"

// PriceFeed pushes Tick values into an engine for as long as ctx is alive,
// preferring a live websocket stream and falling back to REST polling of
// the Venue when the stream is unavailable, or polling only when useWS is
// false (e.g. the in-memory paper venue).
type PriceFeed struct {
	symbol   string
	venue    Venue
	useWS    bool
	interval time.Duration
}

func NewPriceFeed(symbol string, venue Venue, useWS bool, interval time.Duration) *PriceFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &PriceFeed{symbol: symbol, venue: venue, useWS: useWS, interval: interval}
}

// Run drives ticks into enqueue until ctx is canceled.
func (f *PriceFeed) Run(ctx context.Context, enqueue func(Tick)) {
	if f.useWS {
		f.runWebsocket(ctx, enqueue)
		return
	}
	f.runPoll(ctx, enqueue)
}

func (f *PriceFeed) runPoll(ctx context.Context, enqueue func(Tick)) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bid, ask, err := f.venue.BookTicker(ctx, f.symbol)
			if err != nil {
				logger.Warn().Err(err).Msg("price feed: book ticker poll failed")
				continue
			}
			enqueue(Tick{Bid: bid, Ask: ask, At: time.Now()})
		}
	}
}

// runWebsocket streams bookTicker over Binance's single-symbol raw stream.
// After each failed dial it polls the REST venue once, then waits out the
// backoff (1s doubling up to 30s) before redialing; once connected, only the
// stream feeds ticks.
func (f *PriceFeed) runWebsocket(ctx context.Context, enqueue func(Tick)) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streamName := strings.ToLower(f.symbol) + "@bookTicker"
		url := binanceFuturesWSBase + "/" + streamName
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Warn().Err(err).Dur("retry_in", backoff).Msg("price feed: websocket dial failed, polling meanwhile")
			f.pollOnce(ctx, enqueue)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}

		backoff = time.Second
		f.readLoop(ctx, conn, enqueue)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (f *PriceFeed) pollOnce(ctx context.Context, enqueue func(Tick)) {
	bid, ask, err := f.venue.BookTicker(ctx, f.symbol)
	if err != nil {
		logger.Warn().Err(err).Msg("price feed: book ticker poll failed")
		return
	}
	enqueue(Tick{Bid: bid, Ask: ask, At: time.Now()})
}

func (f *PriceFeed) readLoop(ctx context.Context, conn *websocket.Conn, enqueue func(Tick)) {
	type bookTickerMsg struct {
		BidPrice string `json:"b"`
		AskPrice string `json:"a"`
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Warn().Err(err).Msg("price feed: websocket read failed, reconnecting")
			return
		}
		var msg bookTickerMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		bid, errB := decimal.NewFromString(msg.BidPrice)
		ask, errA := decimal.NewFromString(msg.AskPrice)
		if errB != nil || errA != nil {
			continue
		}
		enqueue(Tick{Bid: bid, Ask: ask, At: time.Now()})
	}
}
