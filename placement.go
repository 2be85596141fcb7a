// FILE: placement.go
// Package main – Placement Controller: guarantees at most one live buy per
// grid price, across process restarts and venue hiccups (SPEC_FULL §4.7).
//
// Grounded on _examples/original_source/src/gridbot/core/grid_logic.py's
// place_missing_buys (the reject-list order and the PendingSubmissions
// cleanup-on-every-path shape are copied from there; the entry is deleted
// right after the single PlaceLimit call returns, in place of Python's
// try/finally).

package main

import (
	"context"

	"github.com/shopspring/decimal"
)

type PlacementController struct {
	cfg       Config
	venue     Venue
	quantizer *Quantizer
	journal   *Journal
}

func NewPlacementController(cfg Config, venue Venue, q *Quantizer, journal *Journal) *PlacementController {
	return &PlacementController{cfg: cfg, venue: venue, quantizer: q, journal: journal}
}

// Pass reconciles and places missing buys for this tick's candidate set.
// ignoreRecent, when true (post-reanchor, post-fill, post-TP), skips the
// persistent-cooldown rejection so the ladder refills immediately.
func (p *PlacementController) Pass(ctx context.Context, st *EngineState, candidates []decimal.Decimal, now int64, ignoreRecent bool) error {
	if st.Bot.HaltPlacement {
		return nil
	}

	positions := len(st.Bot.Positions)
	liveBuys := len(st.OpenBuyMap)
	allowed := minInt(p.cfg.MaxOpenTrades-positions-liveBuys, p.cfg.MaxLadders-liveBuys)
	if allowed <= 0 {
		return nil
	}

	// live snapshot taken just now, independent of the once-per-tick
	// SyncFromVenue that already ran before this pass — defends against
	// OpenBuyMap going stale between Sync and submission (SPEC_FULL §4.7).
	freshLiveBuys := p.freshOpenBuyPrices(ctx)

	for _, price := range candidates {
		if allowed <= 0 {
			break
		}
		key := priceKey(price)

		if _, ok := st.OpenBuyMap[key]; ok {
			continue
		}
		if _, ok := st.TPBlocked[key]; ok {
			continue
		}
		if until, ok := st.SuppressUntil[key]; ok && now < until {
			continue
		}
		if _, ok := st.PendingSubmissions[key]; ok {
			continue
		}
		if _, ok := freshLiveBuys[key]; ok {
			continue
		}
		if !ignoreRecent {
			if last, ok := st.Bot.RecentSubmissions[key]; ok && now-last < int64(p.cfg.DuplicateCooldown.Seconds()) {
				continue
			}
		}

		qty, notionalOK := p.quantizer.EnsureMinNotional(price, p.cfg.QtyPerLadder, p.cfg.MaxDailyNotional.Sub(st.Bot.SpentToday))
		if !notionalOK {
			p.journal.Log("DAILY_CAP_SKIP", price, qty, decimal.Zero, st.Bot.RealizedPnL, "estimated notional exceeds remaining daily budget")
			continue
		}

		st.PendingSubmissions[key] = struct{}{}
		clientID := buyClientID(p.cfg.SessionTag, price, st.nextNonce())
		placeCtx, cancelPlace := context.WithTimeout(ctx, p.cfg.PendingLockMax)
		order, err := p.venue.PlaceLimit(placeCtx, p.cfg.Symbol, SideBuy, price, qty, false, clientID)
		cancelPlace()
		delete(st.PendingSubmissions, key)
		if err != nil {
			p.journal.Log("PLACE_ERROR", price, qty, decimal.Zero, st.Bot.RealizedPnL, err.Error())
			continue
		}

		st.OpenBuyMap[key] = OpenBuyEntry{Price: price, OrderID: order.OrderID}
		st.Bot.RecentSubmissions[key] = now
		st.Bot.TotalBuys++
		st.Bot.SpentToday = st.Bot.SpentToday.Add(price.Mul(qty))
		p.journal.Log("BUY_PLACED", price, qty, decimal.Zero, st.Bot.RealizedPnL, "client_id="+clientID)
		mtxBuysPlaced.Inc()
		allowed--
	}
	return nil
}

// RefillNow triggers one immediate placement pass ignoring the persistent
// cooldown, used after a TP fill. (After a confirmed buy fill or a reanchor,
// processTick runs its own Pass with ignoreRecent set.)
func (p *PlacementController) RefillNow(ctx context.Context, st *EngineState, planner *GridPlanner, now int64) error {
	candidates := planner.BuildCandidates(st.Bot.BasePrice, st.TPBlocked)
	return p.Pass(ctx, st, candidates, now, true)
}

// freshOpenBuyPrices fetches the venue's live order book right now and
// returns the price keys of this session's working buys. A failed fetch
// degrades to "nothing extra rejected" — Pass falls back to OpenBuyMap
// alone, same as before this check existed.
func (p *PlacementController) freshOpenBuyPrices(ctx context.Context) map[string]struct{} {
	live := map[string]struct{}{}
	orders, err := p.venue.OpenOrders(ctx, p.cfg.Symbol)
	if err != nil {
		return live
	}
	for _, o := range orders {
		if o.Side != SideBuy || o.ReduceOnly {
			continue
		}
		if !isOurClientID(o.ClientOrderID, p.cfg.SessionTag) {
			continue
		}
		live[priceKey(o.Price)] = struct{}{}
	}
	return live
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
