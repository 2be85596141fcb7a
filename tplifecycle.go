// FILE: tplifecycle.go
// Package main – TP Lifecycle: one reduce-only sell per open position, placed
// on confirmed buy fill, recovered on boot, replaced if the venue ever loses
// it, and reconciled on its own fill (SPEC_FULL §4.9).
//
// Grounded on _examples/original_source/src/gridbot/core/grid_logic.py's
// ensure_tp_for_position / on_buy_filled / check_tp_fills — the replace on
// TP loss, the depth-preserving cancel of the lowest live buy on TP fill, and
// the realized-PnL bookkeeping on TP fill are ported from there.

package main

import (
	"context"

	"github.com/shopspring/decimal"
)

type TPLifecycle struct {
	cfg       Config
	venue     Venue
	quantizer *Quantizer
	journal   *Journal
	placement *PlacementController
}

func NewTPLifecycle(cfg Config, venue Venue, q *Quantizer, journal *Journal, placement *PlacementController) *TPLifecycle {
	return &TPLifecycle{cfg: cfg, venue: venue, quantizer: q, journal: journal, placement: placement}
}

// EnsureTPsForPositions is called once at engine start: any position loaded
// from state that has no TPOrderID gets one placed now (covers the case
// where the process crashed between recording the fill and placing the TP).
func (t *TPLifecycle) EnsureTPsForPositions(ctx context.Context, st *EngineState) {
	for i := range st.Bot.Positions {
		pos := &st.Bot.Positions[i]
		if pos.TPOrderID != "" {
			continue
		}
		t.placeTP(ctx, st, pos)
	}
}

// OnBuyFillConfirmed records a new position for a confirmed buy fill and
// places its take-profit sell.
func (t *TPLifecycle) OnBuyFillConfirmed(ctx context.Context, st *EngineState, price, qty decimal.Decimal, orderID string) {
	pos := Position{Entry: price, Qty: qty}
	st.Bot.Positions = append(st.Bot.Positions, pos)
	st.TPBlocked[priceKey(price)] = struct{}{}
	t.placeTP(ctx, st, &st.Bot.Positions[len(st.Bot.Positions)-1])
	t.journal.Log("BUY_FILLED", price, qty, decimal.Zero, st.Bot.RealizedPnL, "order_id="+orderID)
}

func (t *TPLifecycle) placeTP(ctx context.Context, st *EngineState, pos *Position) {
	tpPrice := t.quantizer.ClampPrice(pos.Entry.Add(t.cfg.TakeProfitOffset))
	qty := t.quantizer.ClampQty(pos.Qty)
	clientID := tpClientID(t.cfg.SessionTag, pos.Entry, qty)

	order, err := t.venue.PlaceLimit(ctx, t.cfg.Symbol, SideSell, tpPrice, qty, true, clientID)
	if err != nil {
		t.journal.Log("TP_PLACE_ERROR", tpPrice, qty, decimal.Zero, st.Bot.RealizedPnL, err.Error())
		return
	}
	pos.TPPrice = tpPrice
	pos.TPOrderID = order.OrderID
	t.journal.Log("TP_PLACED", tpPrice, qty, decimal.Zero, st.Bot.RealizedPnL, "entry="+pos.Entry.String())
	mtxTPsPlaced.Inc()
}

// CheckFills is the engine-side TP-fill trigger: bid crossing tp_price is
// what advances accounting, not a venue status query (SPEC_FULL §4.9/§9) —
// the venue is only consulted to detect and replace a lost TP for a
// position the bid hasn't reached yet.
func (t *TPLifecycle) CheckFills(ctx context.Context, st *EngineState, bid decimal.Decimal, now int64, placement *PlacementController, planner *GridPlanner) {
	var stillOpen []Position
	refillNeeded := false

	for i := range st.Bot.Positions {
		pos := st.Bot.Positions[i]
		if pos.TPOrderID == "" {
			stillOpen = append(stillOpen, pos)
			continue
		}

		if bid.GreaterThanOrEqual(pos.TPPrice) {
			t.onTPFilled(st, pos)
			// depth-preserving cancel: drop the farthest (lowest) live buy and
			// suppress its price for SuppressAfterCancel.
			lowKey := ""
			for key, entry := range st.OpenBuyMap {
				if lowKey == "" || entry.Price.LessThan(st.OpenBuyMap[lowKey].Price) {
					lowKey = key
				}
			}
			if lowKey != "" {
				low := st.OpenBuyMap[lowKey]
				if ok, cerr := t.venue.CancelOrder(ctx, t.cfg.Symbol, low.OrderID); cerr == nil && ok {
					delete(st.OpenBuyMap, lowKey)
					st.SuppressUntil[lowKey] = now + int64(t.cfg.SuppressAfterCancel.Seconds())
					IncCancels("tp_fill")
				}
			}
			delete(st.TPBlocked, priceKey(pos.Entry))
			refillNeeded = true
			// best-effort: tell the venue so its own book stays in sync; the
			// engine's accounting has already advanced regardless of the result.
			_, _ = t.venue.CancelOrder(ctx, t.cfg.Symbol, pos.TPOrderID)
			continue
		}

		order, err := t.venue.QueryOrder(ctx, t.cfg.Symbol, pos.TPOrderID)
		if err != nil {
			// transient query failure: keep the position, retry next tick
			stillOpen = append(stillOpen, pos)
			continue
		}

		switch order.Status {
		case StatusCanceled, StatusExpired, StatusRejected, StatusNotFound, StatusUnknown:
			pos.TPOrderID = ""
			pos.TPPrice = decimal.Zero
			t.placeTP(ctx, st, &pos)
			stillOpen = append(stillOpen, pos)
		default:
			// StatusNew, StatusPartiallyFilled, and a stray StatusFilled (the
			// bid hasn't caught up to it yet) all just mean: still open.
			stillOpen = append(stillOpen, pos)
		}
	}
	st.Bot.Positions = stillOpen

	if refillNeeded {
		if err := placement.RefillNow(ctx, st, planner, now); err != nil {
			t.journal.Log("PLACE_ERROR", decimal.Zero, decimal.Zero, decimal.Zero, st.Bot.RealizedPnL, "refill after TP fill: "+err.Error())
		}
	}
}

func (t *TPLifecycle) onTPFilled(st *EngineState, pos Position) {
	grossPnL := pos.TPPrice.Sub(pos.Entry).Mul(pos.Qty)
	feeRate := t.cfg.TakerFee
	fees := pos.Entry.Add(pos.TPPrice).Mul(pos.Qty).Mul(feeRate)
	netPnL := grossPnL.Sub(fees)

	st.Bot.RealizedPnL = st.Bot.RealizedPnL.Add(netPnL)
	st.Bot.TotalSells++
	t.journal.Log("TP_FILLED", pos.TPPrice, pos.Qty, netPnL, st.Bot.RealizedPnL, "entry="+pos.Entry.String())
	mtxTPsFilled.Inc()
}
