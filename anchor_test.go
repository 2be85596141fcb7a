// FILE: anchor_test.go
package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAlignUpRoundsToNextMultiple(t *testing.T) {
	step := decimal.NewFromInt(10)
	require.True(t, AlignUp(decimal.NewFromInt(1001), step).Equal(decimal.NewFromInt(1010)))
	require.True(t, AlignUp(decimal.NewFromInt(1000), step).Equal(decimal.NewFromInt(1000)))
}

func TestInitIfFreshSetsBasePriceOnce(t *testing.T) {
	cfg := testConfig()
	a := NewAnchorController(cfg, NewJournal(""))
	st := newEngineState(freshState())

	a.InitIfFresh(st, decimal.NewFromInt(1005))
	require.True(t, st.Bot.BasePrice.Equal(decimal.NewFromInt(1010)))

	a.InitIfFresh(st, decimal.NewFromInt(2000))
	require.True(t, st.Bot.BasePrice.Equal(decimal.NewFromInt(1010)), "must not move once set")
}

func TestTrailUpReanchorsAndCancelsBelowFloor(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	journal := NewJournal("")
	a := NewAnchorController(cfg, journal)

	st := newEngineState(freshState())
	st.Bot.BasePrice = decimal.NewFromInt(1000)

	// place a live buy far below the new floor so it gets canceled on trail-up
	order, err := venue.PlaceLimit(context.Background(), cfg.Symbol, SideBuy, decimal.NewFromInt(800), cfg.QtyPerLadder, false, "B-test-80000-1")
	require.NoError(t, err)
	st.OpenBuyMap[priceKey(decimal.NewFromInt(800))] = OpenBuyEntry{Price: decimal.NewFromInt(800), OrderID: order.OrderID}

	reanchored, err := a.TrailUp(context.Background(), st, venue, decimal.NewFromInt(1015), 1000)
	require.NoError(t, err)
	require.True(t, reanchored)
	require.True(t, st.Bot.BasePrice.Equal(decimal.NewFromInt(1020)))

	_, stillOpen := st.OpenBuyMap[priceKey(decimal.NewFromInt(800))]
	require.False(t, stillOpen, "order below the new floor should have been canceled")

	_, suppressed := st.SuppressUntil[priceKey(decimal.NewFromInt(800))]
	require.True(t, suppressed)
}

func TestTrailUpNoopBelowTrigger(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	a := NewAnchorController(cfg, NewJournal(""))

	st := newEngineState(freshState())
	st.Bot.BasePrice = decimal.NewFromInt(1000)

	reanchored, err := a.TrailUp(context.Background(), st, venue, decimal.NewFromInt(1000), 1000)
	require.NoError(t, err)
	require.False(t, reanchored)
	require.True(t, st.Bot.BasePrice.Equal(decimal.NewFromInt(1000)))
}
