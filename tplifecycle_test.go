// FILE: tplifecycle_test.go
package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestTPLifecycle(t *testing.T) (Config, *PaperVenue, *TPLifecycle, *PlacementController, *GridPlanner) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	venue.SetLast(decimal.NewFromInt(1000))
	q := NewQuantizer(testFilters())
	journal := NewJournal("")
	placement := NewPlacementController(cfg, venue, q, journal)
	tp := NewTPLifecycle(cfg, venue, q, journal, placement)
	planner := NewGridPlanner(cfg)
	return cfg, venue, tp, placement, planner
}

func TestOnBuyFillConfirmedRecordsPositionAndPlacesTP(t *testing.T) {
	_, venue, tp, _, _ := newTestTPLifecycle(t)
	st := newEngineState(freshState())

	tp.OnBuyFillConfirmed(context.Background(), st, decimal.NewFromInt(990), decimal.NewFromFloat(0.01), "buy-order-1")

	require.Len(t, st.Bot.Positions, 1)
	pos := st.Bot.Positions[0]
	require.NotEmpty(t, pos.TPOrderID)
	require.True(t, pos.TPPrice.Equal(decimal.NewFromInt(1000)))

	_, blocked := st.TPBlocked[priceKey(decimal.NewFromInt(990))]
	require.True(t, blocked)

	open, err := venue.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, SideSell, open[0].Side)
	require.True(t, open[0].ReduceOnly)
}

func TestEnsureTPsForPositionsRecoversMissingTP(t *testing.T) {
	_, venue, tp, _, _ := newTestTPLifecycle(t)
	st := newEngineState(freshState())
	st.Bot.Positions = append(st.Bot.Positions, Position{Entry: decimal.NewFromInt(990), Qty: decimal.NewFromFloat(0.01)})

	tp.EnsureTPsForPositions(context.Background(), st)

	require.NotEmpty(t, st.Bot.Positions[0].TPOrderID)
	open, err := venue.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestEnsureTPsForPositionsSkipsPositionsWithExistingTP(t *testing.T) {
	_, venue, tp, _, _ := newTestTPLifecycle(t)
	st := newEngineState(freshState())
	st.Bot.Positions = append(st.Bot.Positions, Position{Entry: decimal.NewFromInt(990), Qty: decimal.NewFromFloat(0.01), TPOrderID: "already-there"})

	tp.EnsureTPsForPositions(context.Background(), st)

	require.Equal(t, "already-there", st.Bot.Positions[0].TPOrderID)
	open, err := venue.OpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Empty(t, open, "must not place a duplicate TP for a position that already has one")
}

func TestCheckFillsRealizesPnLAndRefillsOnTPFill(t *testing.T) {
	cfg, venue, tp, placement, planner := newTestTPLifecycle(t)
	st := newEngineState(freshState())
	st.Bot.BasePrice = decimal.NewFromInt(1000)

	tp.OnBuyFillConfirmed(context.Background(), st, decimal.NewFromInt(990), cfg.QtyPerLadder, "buy-1")
	require.Len(t, st.Bot.Positions, 1)

	// price trades up through the TP
	venue.SetLast(decimal.NewFromInt(1005))

	tp.CheckFills(context.Background(), st, decimal.NewFromInt(1005), 1000, placement, planner)

	require.Empty(t, st.Bot.Positions, "filled TP must drop the position")
	require.True(t, st.Bot.RealizedPnL.GreaterThan(decimal.Zero), "a profitable TP fill must realize positive PnL after fees")
	require.Equal(t, 1, st.Bot.TotalSells)

	_, stillBlocked := st.TPBlocked[priceKey(decimal.NewFromInt(990))]
	require.False(t, stillBlocked, "freed entry price must be unblocked after the TP fills")
}

func TestCheckFillsReplacesLostTPAtSamePrice(t *testing.T) {
	cfg, venue, tp, placement, planner := newTestTPLifecycle(t)
	st := newEngineState(freshState())

	tp.OnBuyFillConfirmed(context.Background(), st, decimal.NewFromInt(990), cfg.QtyPerLadder, "buy-1")
	lostOrderID := st.Bot.Positions[0].TPOrderID

	ok, err := venue.CancelOrder(context.Background(), cfg.Symbol, lostOrderID)
	require.NoError(t, err)
	require.True(t, ok)

	tp.CheckFills(context.Background(), st, decimal.NewFromInt(995), 1000, placement, planner)

	require.Len(t, st.Bot.Positions, 1, "a canceled TP must not drop the position")
	require.NotEqual(t, lostOrderID, st.Bot.Positions[0].TPOrderID, "a replacement TP must be placed")
	require.NotEmpty(t, st.Bot.Positions[0].TPOrderID)
}
