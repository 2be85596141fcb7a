// FILE: anchor.go
// Package main – Anchor Controller: maintains base_price and trails it up.
//
// Grounded on _examples/original_source/src/gridbot/core/grid_logic.py's
// reanchor_up_if_needed: the trigger condition, the trail_max_cancel_per_reanchor
// bound, and the suppress-after-cancel marking are ported from there.

package main

import (
	"context"

	"github.com/shopspring/decimal"
)

// AlignUp rounds x up to the nearest multiple of step.
func AlignUp(x, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return x
	}
	q := x.Div(step)
	ceil := q.Ceil()
	return ceil.Mul(step)
}

// AnchorController owns base_price and the trail-up policy.
type AnchorController struct {
	cfg     Config
	journal *Journal
}

func NewAnchorController(cfg Config, journal *Journal) *AnchorController {
	return &AnchorController{cfg: cfg, journal: journal}
}

// InitIfFresh sets base_price from mid on a fresh engine.
func (a *AnchorController) InitIfFresh(st *EngineState, mid decimal.Decimal) {
	if !st.Bot.BasePrice.IsZero() {
		return
	}
	st.Bot.BasePrice = AlignUp(mid, a.cfg.GridStep)
}

// TrailUp moves base_price up if the market has risen enough, canceling any
// live buy that now falls below the new working window, and returns true if
// a reanchor happened (the caller should then run one Planner+Placement
// pass).
func (a *AnchorController) TrailUp(ctx context.Context, st *EngineState, venue Venue, mid decimal.Decimal, now int64) (reanchored bool, err error) {
	if !a.cfg.TrailUp {
		return false, nil
	}
	target := AlignUp(mid, a.cfg.GridStep)
	trigger := st.Bot.BasePrice.Add(a.cfg.GridStep.Mul(decimal.NewFromInt(int64(a.cfg.TrailTriggerSteps))))
	if target.LessThan(trigger) {
		return false, nil
	}

	oldBase := st.Bot.BasePrice
	st.Bot.BasePrice = target

	floor := target.Sub(a.cfg.GridStep.Mul(decimal.NewFromInt(int64(a.cfg.MaxLadders))))
	canceled := 0
	for key, entry := range st.OpenBuyMap {
		if canceled >= a.cfg.TrailMaxCancelPerReanchor {
			break
		}
		if entry.Price.GreaterThanOrEqual(floor) {
			continue
		}
		ok, cerr := venue.CancelOrder(ctx, a.cfg.Symbol, entry.OrderID)
		if cerr != nil {
			a.journal.Log("CANCEL_ERROR", entry.Price, decimal.Zero, decimal.Zero, st.Bot.RealizedPnL, cerr.Error())
			continue
		}
		if ok {
			delete(st.OpenBuyMap, key)
			st.SuppressUntil[key] = now + int64(a.cfg.SuppressAfterCancel.Seconds())
			canceled++
			IncCancels("reanchor")
		}
	}

	a.journal.Log("REANCHOR_UP", target, decimal.Zero, decimal.Zero, st.Bot.RealizedPnL, "from="+oldBase.String())
	mtxReanchors.Inc()
	return true, nil
}
