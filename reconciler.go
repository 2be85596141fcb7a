// FILE: reconciler.go
// Package main – Fill Reconciler: detects vanished buys and classifies them
// via debounced status queries (SPEC_FULL §4.8); also rebuilds OpenBuyMap
// and TPBlockedSet from venue truth each tick (the sync half of Placement
// Controller step 1).
//
// Grounded on _examples/original_source/src/gridbot/core/grid_logic.py's
// sync_open_from_exchange_full, confirm_and_process_vanished, and
// detect_filled_buys_and_restore — the two-pass suspect-then-confirm debounce
// (including the >=2s gate) is this file's central idea, ported from there.

package main

import (
	"context"

	"github.com/shopspring/decimal"
)

const vanishDebounceSeconds = 2

// ConfirmedFill is a buy fill the reconciler has classified as real.
type ConfirmedFill struct {
	Price   decimal.Decimal
	Qty     decimal.Decimal
	OrderID string
}

type FillReconciler struct {
	cfg     Config
	venue   Venue
	journal *Journal
}

func NewFillReconciler(cfg Config, venue Venue, journal *Journal) *FillReconciler {
	return &FillReconciler{cfg: cfg, venue: venue, journal: journal}
}

// SyncFromVenue rebuilds OpenBuyMap from the live open-orders snapshot
// (filtered to this engine's own client ids) and rebuilds TPBlockedSet from
// live reduce-only sells.
func (r *FillReconciler) SyncFromVenue(ctx context.Context, st *EngineState, session string) error {
	live, err := r.venue.OpenOrders(ctx, r.cfg.Symbol)
	if err != nil {
		return err
	}

	rebuiltBuys := map[string]OpenBuyEntry{}
	rebuiltBlocked := map[string]struct{}{}
	for _, o := range live {
		if !isOurClientID(o.ClientOrderID, session) {
			continue
		}
		switch o.Side {
		case SideBuy:
			rebuiltBuys[priceKey(o.Price)] = OpenBuyEntry{Price: o.Price, OrderID: o.OrderID}
		case SideSell:
			if o.ReduceOnly {
				entry := o.Price.Sub(r.cfg.TakeProfitOffset)
				rebuiltBlocked[priceKey(entry)] = struct{}{}
			}
		}
	}
	// positions without a live TP yet still block their entry price
	for _, pos := range st.Bot.Positions {
		rebuiltBlocked[priceKey(pos.Entry)] = struct{}{}
	}

	// an order mid-debounce (DetectVanished has marked it "suspected" but not
	// yet confirmed) is by definition absent from the live snapshot; keep it
	// so this rebuild doesn't reopen its grid level out from under the debounce.
	for key, entry := range st.OpenBuyMap {
		if _, suspected := st.SuspectedFilled[entry.OrderID]; suspected {
			if _, already := rebuiltBuys[key]; !already {
				rebuiltBuys[key] = entry
			}
		}
	}

	st.OpenBuyMap = rebuiltBuys
	st.TPBlocked = rebuiltBlocked
	return nil
}

// DetectVanished lists venue open orders again, finds OpenBuyMap entries
// whose order id is no longer live, and classifies each per the status
// table in SPEC_FULL §4.8. Returns the fills that should trigger
// on_buy_fill_confirmed.
func (r *FillReconciler) DetectVanished(ctx context.Context, st *EngineState, now int64) ([]ConfirmedFill, error) {
	live, err := r.venue.OpenOrders(ctx, r.cfg.Symbol)
	if err != nil {
		return nil, err
	}
	liveIDs := map[string]struct{}{}
	for _, o := range live {
		liveIDs[o.OrderID] = struct{}{}
	}

	var vanished []struct {
		Key   string
		Entry OpenBuyEntry
	}
	for key, entry := range st.OpenBuyMap {
		if _, ok := liveIDs[entry.OrderID]; !ok {
			vanished = append(vanished, struct {
				Key   string
				Entry OpenBuyEntry
			}{key, entry})
		}
	}

	var fills []ConfirmedFill
	for _, v := range vanished {
		delete(st.OpenBuyMap, v.Key)

		if !r.cfg.InstantTPRefill {
			firstSeen, suspected := st.SuspectedFilled[v.Entry.OrderID]
			if !suspected {
				st.SuspectedFilled[v.Entry.OrderID] = now
				st.OpenBuyMap[v.Key] = v.Entry // restore pending confirmation
				continue
			}
			if now-firstSeen < vanishDebounceSeconds {
				st.OpenBuyMap[v.Key] = v.Entry
				continue
			}
		}

		order, err := r.venue.QueryOrder(ctx, r.cfg.Symbol, v.Entry.OrderID)
		if err != nil {
			st.SuppressUntil[v.Key] = now + int64(r.cfg.SuppressOnUnknown.Seconds())
			continue
		}
		delete(st.SuspectedFilled, v.Entry.OrderID)

		switch order.Status {
		case StatusFilled:
			threshold := r.cfg.QtyPerLadder.Mul(decimal.NewFromFloat(0.999))
			if order.ExecutedQty.GreaterThanOrEqual(threshold) && !st.hasHandledFill(v.Entry.OrderID) {
				st.markHandledFill(v.Entry.OrderID)
				fills = append(fills, ConfirmedFill{Price: v.Entry.Price, Qty: order.ExecutedQty, OrderID: v.Entry.OrderID})
			} else {
				st.SuppressUntil[v.Key] = now + int64(r.cfg.SuppressOnUnknown.Seconds())
			}
		case StatusCanceled, StatusExpired, StatusRejected:
			st.SuppressUntil[v.Key] = now + int64(r.cfg.SuppressAfterCancel.Seconds())
			r.journal.Log("BUY_CANCELED", v.Entry.Price, decimal.Zero, decimal.Zero, st.Bot.RealizedPnL, string(order.Status))
		case StatusNotFound, StatusUnknown:
			st.SuppressUntil[v.Key] = now + int64(r.cfg.SuppressOnUnknown.Seconds())
		case StatusNew, StatusPartiallyFilled:
			st.OpenBuyMap[v.Key] = v.Entry
		}
	}
	return fills, nil
}

func (st *EngineState) hasHandledFill(orderID string) bool {
	for _, id := range st.Bot.HandledFills {
		if id == orderID {
			return true
		}
	}
	return false
}

func (st *EngineState) markHandledFill(orderID string) {
	st.Bot.HandledFills = append(st.Bot.HandledFills, orderID)
}
