// FILE: reconciler_test.go
package main

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSyncFromVenueRebuildsOpenBuysAndTPBlocked(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	journal := NewJournal("")
	r := NewFillReconciler(cfg, venue, journal)

	buyPrice := decimal.NewFromInt(990)
	_, err := venue.PlaceLimit(context.Background(), cfg.Symbol, SideBuy, buyPrice, cfg.QtyPerLadder, false, buyClientID(cfg.SessionTag, buyPrice, 1))
	require.NoError(t, err)

	tpEntry := decimal.NewFromInt(1000)
	tpPrice := tpEntry.Add(cfg.TakeProfitOffset)
	_, err = venue.PlaceLimit(context.Background(), cfg.Symbol, SideSell, tpPrice, cfg.QtyPerLadder, true, tpClientID(cfg.SessionTag, tpEntry, cfg.QtyPerLadder))
	require.NoError(t, err)

	// an order from a different session must be ignored
	_, err = venue.PlaceLimit(context.Background(), cfg.Symbol, SideBuy, decimal.NewFromInt(980), cfg.QtyPerLadder, false, buyClientID("other-session", decimal.NewFromInt(980), 1))
	require.NoError(t, err)

	st := newEngineState(freshState())
	require.NoError(t, r.SyncFromVenue(context.Background(), st, cfg.SessionTag))

	require.Len(t, st.OpenBuyMap, 1)
	_, ok := st.OpenBuyMap[priceKey(buyPrice)]
	require.True(t, ok)

	_, blocked := st.TPBlocked[priceKey(tpEntry)]
	require.True(t, blocked)
}

func TestDetectVanishedDebouncesThenConfirmsCancel(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	journal := NewJournal("")
	r := NewFillReconciler(cfg, venue, journal)

	price := decimal.NewFromInt(990)
	order, err := venue.PlaceLimit(context.Background(), cfg.Symbol, SideBuy, price, cfg.QtyPerLadder, false, buyClientID(cfg.SessionTag, price, 1))
	require.NoError(t, err)

	st := newEngineState(freshState())
	st.OpenBuyMap[priceKey(price)] = OpenBuyEntry{Price: price, OrderID: order.OrderID}

	ok, err := venue.CancelOrder(context.Background(), cfg.Symbol, order.OrderID)
	require.NoError(t, err)
	require.True(t, ok)

	fills, err := r.DetectVanished(context.Background(), st, 1000)
	require.NoError(t, err)
	require.Empty(t, fills, "first sighting of a vanished order should only mark it suspected")
	_, restored := st.OpenBuyMap[priceKey(price)]
	require.True(t, restored)

	fills, err = r.DetectVanished(context.Background(), st, 1001)
	require.NoError(t, err)
	require.Empty(t, fills, "debounce window has not elapsed yet")
	_, stillRestored := st.OpenBuyMap[priceKey(price)]
	require.True(t, stillRestored)

	fills, err = r.DetectVanished(context.Background(), st, 1000+vanishDebounceSeconds)
	require.NoError(t, err)
	require.Empty(t, fills, "a canceled order is not a fill")
	_, goneNow := st.OpenBuyMap[priceKey(price)]
	require.False(t, goneNow)
	_, suppressed := st.SuppressUntil[priceKey(price)]
	require.True(t, suppressed)
}

func TestDetectVanishedConfirmsFill(t *testing.T) {
	cfg := testConfig()
	venue := NewPaperVenue(cfg.Symbol, testFilters(), cfg.TakerFee)
	venue.SetLast(decimal.NewFromInt(1000))
	journal := NewJournal("")
	r := NewFillReconciler(cfg, venue, journal)

	price := decimal.NewFromInt(990)
	order, err := venue.PlaceLimit(context.Background(), cfg.Symbol, SideBuy, price, cfg.QtyPerLadder, false, buyClientID(cfg.SessionTag, price, 1))
	require.NoError(t, err)

	st := newEngineState(freshState())
	st.OpenBuyMap[priceKey(price)] = OpenBuyEntry{Price: price, OrderID: order.OrderID}

	// the trade price crosses the buy, filling it on the venue side
	venue.SetLast(decimal.NewFromInt(985))

	_, err = r.DetectVanished(context.Background(), st, 1000)
	require.NoError(t, err)

	fills, err := r.DetectVanished(context.Background(), st, 1000+vanishDebounceSeconds)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	require.Equal(t, order.OrderID, fills[0].OrderID)
	require.True(t, fills[0].Price.Equal(price))

	// a second detection pass must not double-report the same fill
	st.OpenBuyMap[priceKey(price)] = OpenBuyEntry{Price: price, OrderID: order.OrderID}
	_, err = r.DetectVanished(context.Background(), st, 2000)
	require.NoError(t, err)
	fills, err = r.DetectVanished(context.Background(), st, 2000+vanishDebounceSeconds)
	require.NoError(t, err)
	require.Empty(t, fills)
}
