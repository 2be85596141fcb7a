// FILE: engine_test.go
package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *PaperVenue) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	venue.SetLast(decimal.NewFromInt(1000))

	store := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	journal := NewJournal("")
	engine, err := NewEngine(cfg, venue, store, journal, NoopAlerter{})
	require.NoError(t, err)
	return engine, venue
}

func TestProcessTickSeedsAnchorAndPlacesLadder(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.processTick(context.Background(), Tick{
		Bid: decimal.NewFromFloat(999.9),
		Ask: decimal.NewFromFloat(1000.1),
		At:  time.Unix(1000, 0),
	})

	require.True(t, engine.state.Bot.BasePrice.GreaterThan(decimal.Zero), "first tick must seed base_price")
	require.NotEmpty(t, engine.state.OpenBuyMap, "first tick must place the initial ladder")
	require.LessOrEqual(t, len(engine.state.OpenBuyMap), engine.cfg.MaxLadders)
}

func TestProcessTickSkipsPlacementOnWideSpread(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.processTick(context.Background(), Tick{
		Bid: decimal.NewFromInt(900),
		Ask: decimal.NewFromInt(1100), // ~2000bps, far above MaxSpreadBps=50
		At:  time.Unix(1000, 0),
	})

	require.True(t, engine.state.Bot.BasePrice.IsZero(), "a too-wide spread tick must not even seed the anchor")
	require.Empty(t, engine.state.OpenBuyMap)
}

func TestProcessTickCarriesABuyFillThroughToATakeProfit(t *testing.T) {
	engine, venue := newTestEngine(t)

	// tick 1: seed anchor at ~1000, place ladder below it
	engine.processTick(context.Background(), Tick{
		Bid: decimal.NewFromFloat(999.9),
		Ask: decimal.NewFromFloat(1000.1),
		At:  time.Unix(1000, 0),
	})
	require.NotEmpty(t, engine.state.OpenBuyMap)

	// drive the simulated trade price down through the nearest rung
	var topBuy decimal.Decimal
	for _, entry := range engine.state.OpenBuyMap {
		if topBuy.IsZero() || entry.Price.GreaterThan(topBuy) {
			topBuy = entry.Price
		}
	}
	venue.SetLast(topBuy)

	// tick 2: the reconciler first sees the order vanished (suspected)
	engine.processTick(context.Background(), Tick{
		Bid: topBuy.Sub(decimal.NewFromFloat(0.1)),
		Ask: topBuy.Add(decimal.NewFromFloat(0.1)),
		At:  time.Unix(1001, 0),
	})

	// tick 3: past the debounce window, the fill is confirmed and a position opens
	engine.processTick(context.Background(), Tick{
		Bid: topBuy.Sub(decimal.NewFromFloat(0.1)),
		Ask: topBuy.Add(decimal.NewFromFloat(0.1)),
		At:  time.Unix(1001+vanishDebounceSeconds, 0),
	})
	require.Len(t, engine.state.Bot.Positions, 1, "a confirmed buy fill must open exactly one position")
	pos := engine.state.Bot.Positions[0]
	require.NotEmpty(t, pos.TPOrderID)

	// drive the tick's own bid up through the take-profit price: CheckFills
	// treats bid >= tp_price as the authoritative fill signal, independent of
	// venue order status.
	venue.SetLast(pos.TPPrice)
	engine.processTick(context.Background(), Tick{
		Bid: pos.TPPrice,
		Ask: pos.TPPrice.Add(decimal.NewFromFloat(0.1)),
		At:  time.Unix(1010, 0),
	})

	require.Empty(t, engine.state.Bot.Positions, "the take-profit fill must close the position")
	require.True(t, engine.state.Bot.RealizedPnL.GreaterThan(decimal.Zero))
}

func TestOpenBuyMapSurvivesSaveLoadRoundTrip(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	venue.SetLast(decimal.NewFromInt(1000))
	statePath := filepath.Join(t.TempDir(), "state.json")
	store := NewStateStore(statePath)
	journal := NewJournal("")

	engine, err := NewEngine(cfg, venue, store, journal, NoopAlerter{})
	require.NoError(t, err)
	engine.processTick(context.Background(), Tick{
		Bid: decimal.NewFromFloat(999.9),
		Ask: decimal.NewFromFloat(1000.1),
		At:  time.Unix(1000, 0),
	})
	require.NotEmpty(t, engine.state.OpenBuyMap)

	saved, fresh, err := store.Load()
	require.NoError(t, err)
	require.False(t, fresh)
	require.Len(t, saved.OpenBuyPriceToID, len(engine.state.OpenBuyMap), "every live buy must be persisted")

	restored := newEngineState(saved)
	require.Equal(t, len(engine.state.OpenBuyMap), len(restored.OpenBuyMap))
	for key, entry := range engine.state.OpenBuyMap {
		got, ok := restored.OpenBuyMap[key]
		require.True(t, ok, "restored OpenBuyMap must contain price key %s", key)
		require.Equal(t, entry.OrderID, got.OrderID)
		require.True(t, entry.Price.Equal(got.Price))
	}
}

func TestHaltCancelsLiveBuysAndIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)

	engine.processTick(context.Background(), Tick{
		Bid: decimal.NewFromFloat(999.9),
		Ask: decimal.NewFromFloat(1000.1),
		At:  time.Unix(1000, 0),
	})
	require.NotEmpty(t, engine.state.OpenBuyMap)

	engine.Halt(context.Background())
	require.Empty(t, engine.state.OpenBuyMap)
	require.True(t, engine.state.Bot.HaltPlacement)

	// a second call must be a no-op, not an error or a panic
	engine.Halt(context.Background())
}
